package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/nightlife-concierge/internal/matching"
)

const (
	s3Scheme         = "s3://"
	maxRuleFileBytes = 5 << 20
)

// RuleObjectGetter fetches rule files published to S3.
type RuleObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// IsS3RulesPath reports whether RULES_PATH names an S3 object.
func IsS3RulesPath(path string) bool {
	return strings.HasPrefix(strings.TrimSpace(path), s3Scheme)
}

// LoadRules reads the rule table once at startup from a local file, an
// s3://bucket/key object, or the embedded default when path is empty.
func LoadRules(ctx context.Context, path string, objects RuleObjectGetter) (*matching.Table, error) {
	path = strings.TrimSpace(path)
	if !IsS3RulesPath(path) {
		return matching.Load(path)
	}
	if objects == nil {
		return nil, fmt.Errorf("bootstrap: s3 client required for rules at %s", path)
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(path, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("bootstrap: invalid rules location %q", path)
	}
	format, err := matching.FormatForPath(key)
	if err != nil {
		return nil, err
	}

	out, err := objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: fetch rules %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxRuleFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read rules %s: %w", path, err)
	}
	if len(data) > maxRuleFileBytes {
		return nil, fmt.Errorf("bootstrap: rules %s exceed %d bytes", path, maxRuleFileBytes)
	}
	return matching.Parse(data, format)
}

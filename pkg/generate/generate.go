package generate

import (
	"context"

	"github.com/formexa/formexa/pkg/plans"
)

// Kind identifies the type of content being generated.
type Kind string

const (
	KindArticle Kind = "article"
	KindImage   Kind = "image"
	KindCode    Kind = "code"
)

// Valid reports whether k is a known content kind.
func (k Kind) Valid() bool {
	switch k {
	case KindArticle, KindImage, KindCode:
		return true
	}
	return false
}

// Feature returns the metered feature a generation of this kind consumes.
func (k Kind) Feature() plans.Feature {
	switch k {
	case KindArticle:
		return plans.FeatureArticles
	case KindImage:
		return plans.FeatureImages
	case KindCode:
		return plans.FeatureCode
	}
	return ""
}

// Request describes a generation to perform.
type Request struct {
	Kind    Kind
	Prompt  string
	Options map[string]string // provider hints: size, language, model
}

// Content is the result of a successful generation.
type Content struct {
	Kind   Kind
	Output string            // article text, image URL, or code
	Meta   map[string]string // provider metadata: tokens used, model name
}

// Generator produces content by calling an external model provider. The
// entitlement flow treats the result as an opaque success or failure: a
// returned error wraps ErrGenerationFailed and must never consume quota.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Content, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Content, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Content, error) {
	return f(ctx, req)
}

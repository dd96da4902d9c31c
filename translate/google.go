package translate

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	gtranslate "google.golang.org/api/translate/v2"
)

// GoogleTranslator calls the Cloud Translation v2 REST API.
type GoogleTranslator struct {
	service *gtranslate.Service
	source  string
}

// NewGoogleTranslator builds a translator authenticated with apiKey.
// endpoint overrides the API base path and is meant for tests.
func NewGoogleTranslator(ctx context.Context, apiKey, source, endpoint string) (*GoogleTranslator, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := gtranslate.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create translation service")
	}
	return &GoogleTranslator{service: svc, source: source}, nil
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	resp, err := g.service.Translations.List([]string{text}, target).
		Source(g.source).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", errors.Wrapf(err, "google translate to %s", target)
	}
	if len(resp.Translations) == 0 {
		return "", nil
	}
	return resp.Translations[0].TranslatedText, nil
}

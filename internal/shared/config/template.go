package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"text/template"
)

//go:embed env.template
var envTemplateText string

var envTemplate = template.Must(template.New("env").Option("missingkey=error").Parse(envTemplateText))

type templateData struct {
	SecretKey                string
	Algorithm                string
	AccessTokenExpireMinutes int
	Placeholder              string
	OpenAIBaseURL            string
	PolishModel              string
	EnhanceModel             string
	AdminUsername            string
	DefaultUsageLimit        int
	Host                     string
	Port                     int
}

// RenderTemplate produces the first-run .env document. Only the signing
// secret is filled in; credentials stay as PlaceholderValue.
func RenderTemplate(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("render env template: secret is empty")
	}
	var buf bytes.Buffer
	err := envTemplate.Execute(&buf, templateData{
		SecretKey:                secret,
		Algorithm:                DefaultAlgorithm,
		AccessTokenExpireMinutes: DefaultAccessTokenExpireMinutes,
		Placeholder:              PlaceholderValue,
		OpenAIBaseURL:            DefaultOpenAIBaseURL,
		PolishModel:              DefaultPolishModel,
		EnhanceModel:             DefaultEnhanceModel,
		AdminUsername:            DefaultAdminUsername,
		DefaultUsageLimit:        DefaultUsageLimit,
		Host:                     DefaultHost,
		Port:                     DefaultPort,
	})
	if err != nil {
		return nil, fmt.Errorf("render env template: %w", err)
	}
	return buf.Bytes(), nil
}

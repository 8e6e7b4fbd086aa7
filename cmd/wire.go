package cmd

import (
	"fmt"
	"os"

	"github.com/silicon-ci/vmanager-action/internal/adapters/ghactions"
	waitrender "github.com/silicon-ci/vmanager-action/internal/adapters/render/wait"
	"github.com/silicon-ci/vmanager-action/internal/adapters/vapi"
	"github.com/silicon-ci/vmanager-action/internal/config"
	"github.com/silicon-ci/vmanager-action/internal/domain"
	"github.com/silicon-ci/vmanager-action/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	cfg           config.Config
	client        *vapi.Client
	status        ports.StatusClient
	launcher      ports.SessionLauncher
	directory     ports.SessionDirectory
	suspender     ports.SessionSuspender
	outputs       *ghactions.Outputs
	annotator     *ghactions.Annotator
	renderSummary func(map[domain.SessionID]*domain.Session, domain.AggregateResult, waitrender.RenderOptions) (string, error)
	clock         ports.Clock
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	client := vapi.New(vapi.Config{
		BaseURL:           cfg.VAPIURL,
		User:              cfg.VAPIUser,
		Password:          cfg.VAPIPassword,
		AuthRequired:      cfg.AuthRequired,
		ConnTimeout:       cfg.ConnTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		InsecureSkipTLS:   cfg.IgnoreSSLErrors,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RunAttributeKeys:  cfg.ExtraAttributes,
	})

	return &app{
		cfg:           cfg,
		client:        client,
		status:        client,
		launcher:      client,
		directory:     client,
		suspender:     client,
		outputs:       ghactions.New(os.Getenv("GITHUB_OUTPUT")),
		annotator:     ghactions.NewAnnotator(os.Stderr, ghactions.IsActions()),
		renderSummary: waitrender.Render,
		clock:         ports.SystemClock{},
	}, nil
}

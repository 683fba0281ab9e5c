package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/repo"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateProject(ctx, " ", ""); !errors.Is(err, ErrInvalidProjectName) {
		t.Errorf("expected ErrInvalidProjectName, got %v", err)
	}
	if _, err := f.svc.CreateProject(ctx, "acme", ""); !errors.Is(err, repo.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := f.svc.CreateProject(ctx, "globex", "second app"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	projects, err := f.svc.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("expected 2 projects, got %d", len(projects))
	}
}

func TestSetGitHubConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("keeps token when omitted", func(t *testing.T) {
		cfg := *f.config
		cfg.AccessToken = ""
		cfg.DefaultTargetBranch = "main"

		saved, err := f.svc.SetGitHubConfig(ctx, &cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if saved.AccessToken != "ghp_test" {
			t.Errorf("expected previous token, got %q", saved.AccessToken)
		}
		stored, _ := f.svc.GetGitHubConfig(ctx, f.project.ID)
		if stored.DefaultTargetBranch != "main" {
			t.Errorf("expected main, got %s", stored.DefaultTargetBranch)
		}
	})

	t.Run("unknown step type", func(t *testing.T) {
		cfg := *f.config
		cfg.WorkflowURLs = map[string]string{"DEPLOY_MOON": "acme/app/moon.yml"}
		if _, err := f.svc.SetGitHubConfig(ctx, &cfg); !errors.Is(err, ErrUnknownStepType) {
			t.Errorf("expected ErrUnknownStepType, got %v", err)
		}
	})

	t.Run("malformed workflow", func(t *testing.T) {
		cfg := *f.config
		cfg.WorkflowURLs = map[string]string{string(domain.StepTypeBuildStaging): "acme"}
		if _, err := f.svc.SetGitHubConfig(ctx, &cfg); !errors.Is(err, ErrInvalidWorkflowURL) {
			t.Errorf("expected ErrInvalidWorkflowURL, got %v", err)
		}
	})

	t.Run("malformed repository", func(t *testing.T) {
		cfg := *f.config
		cfg.AppRepositoryURL = "acme"
		if _, err := f.svc.SetGitHubConfig(ctx, &cfg); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestValidateGitHubConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gw.repoOK["acme/app"] = true
	res, err := f.svc.ValidateGitHubConfig(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.CredentialValid || res.AppRepositoryValid == nil || !*res.AppRepositoryValid {
		t.Errorf("expected valid credential and app repo: %+v", res)
	}
	if res.BFFRepositoryValid == nil || *res.BFFRepositoryValid {
		t.Errorf("expected invalid bff repo: %+v", res)
	}
	if res.Valid() {
		t.Error("config with an inaccessible repository is not valid")
	}

	f.gw.tokenOK = false
	res, err = f.svc.ValidateGitHubConfig(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CredentialValid || res.AppRepositoryValid != nil {
		t.Errorf("repositories must not be checked with a bad token: %+v", res)
	}

	other, err := f.svc.CreateProject(ctx, "initech", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := f.svc.ValidateGitHubConfig(ctx, other.ID); !errors.Is(err, ErrGitHubNotConfigured) {
		t.Errorf("expected ErrGitHubNotConfigured, got %v", err)
	}
}

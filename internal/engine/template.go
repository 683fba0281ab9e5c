package engine

import (
	"strings"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// BranchParam — параметр, который выбирает git ref для dispatch
// и не передаётся в inputs workflow.
const BranchParam = "branch"

// Поддерживаемые плейсхолдеры.
const (
	TokenReleaseVersion   = "{{release.version}}"
	TokenReleaseTitle     = "{{release.title}}"
	TokenStepType         = "{{step.type}}"
	TokenStepTitle        = "{{step.title}}"
	TokenStepSourceBranch = "{{step.sourceBranch}}"
	TokenStepTargetBranch = "{{step.targetBranch}}"
)

// Context — значения для подстановки плейсхолдеров.
type Context struct {
	ReleaseVersion   string
	ReleaseTitle     string
	StepType         string
	StepTitle        string
	StepSourceBranch string
	StepTargetBranch string
}

// NewContext собирает контекст из шага и релиза. nil допустим.
func NewContext(step *domain.WorkflowStep, release *domain.Release) *Context {
	ctx := &Context{}
	if release != nil {
		ctx.ReleaseVersion = release.Version
		ctx.ReleaseTitle = release.Title
	}
	if step != nil {
		ctx.StepType = string(step.Type)
		ctx.StepTitle = step.Title
		ctx.StepSourceBranch = step.SourceBranch
		ctx.StepTargetBranch = step.TargetBranch
	}
	return ctx
}

func (c *Context) replacer() *strings.Replacer {
	return strings.NewReplacer(
		TokenReleaseVersion, c.ReleaseVersion,
		TokenReleaseTitle, c.ReleaseTitle,
		TokenStepType, c.StepType,
		TokenStepTitle, c.StepTitle,
		TokenStepSourceBranch, c.StepSourceBranch,
		TokenStepTargetBranch, c.StepTargetBranch,
	)
}

// Substitute заменяет известные плейсхолдеры в строке.
// Неизвестные токены остаются как есть.
func (c *Context) Substitute(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return c.replacer().Replace(s)
}

// SubstitutePlaceholders возвращает копию параметров с подставленными значениями.
func SubstitutePlaceholders(params Params, ctx *Context) Params {
	r := ctx.replacer()
	out := make(Params, len(params))
	for i, kv := range params {
		out[i] = Param{Key: kv.Key, Value: r.Replace(kv.Value)}
	}
	return out
}

// ExtractBranch извлекает параметр branch и возвращает ref и остальные параметры.
// Пустой или отсутствующий branch заменяется на fallback.
func ExtractBranch(params Params, fallback string) (string, Params) {
	ref, ok := params.Get(BranchParam)
	if !ok || ref == "" {
		ref = fallback
	}
	return ref, params.Delete(BranchParam)
}

package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// PipelineTemplateVersion — версия шаблона pipeline.
// Увеличивается при любом изменении таблицы defaultPipeline.
const PipelineTemplateVersion = 3

// StepTemplate — одна запись шаблона pipeline.
type StepTemplate struct {
	StepNumber           int                   `json:"step_number" yaml:"step_number"`
	Type                 domain.StepType       `json:"type" yaml:"type"`
	Title                string                `json:"title" yaml:"title"`
	Description          string                `json:"description" yaml:"description"`
	IsRequired           bool                  `json:"is_required" yaml:"is_required"`
	EstimatedDurationMin int                   `json:"estimated_duration_min" yaml:"estimated_duration_min"`
	RepositoryType       domain.RepositoryType `json:"repository_type,omitempty" yaml:"repository_type,omitempty"`
	SourceBranch         string                `json:"source_branch,omitempty" yaml:"source_branch,omitempty"`
	TargetBranch         string                `json:"target_branch,omitempty" yaml:"target_branch,omitempty"`
}

// defaultPipeline — канонический порядок шагов релиза.
// Таблица не изменяется во время работы; наружу отдаются только копии.
var defaultPipeline = [...]StepTemplate{
	{1, domain.StepTypeCodeFreeze, "Code freeze", "Announce code freeze for the release scope", true, 30, "", "", ""},
	{2, domain.StepTypePRMerge, "Merge develop to release (App)", "Open and merge the develop → release PR in the app repository", true, 60, domain.RepositoryApp, "develop", "release"},
	{3, domain.StepTypePRMerge, "Merge develop to release (BFF)", "Open and merge the develop → release PR in the BFF repository", true, 60, domain.RepositoryBFF, "develop", "release"},
	{4, domain.StepTypeFunctionalBuildAndShare, "Functional build", "Build the functional testing build and share it with QA", true, 45, "", "", ""},
	{5, domain.StepTypeFunctionalQASignoff, "Functional QA sign-off", "QA signs off the functional build", true, 480, "", "", ""},
	{6, domain.StepTypeFunctionalProductSignoff, "Functional product sign-off", "Product signs off the functional build", true, 240, "", "", ""},
	{7, domain.StepTypeBugFixMerge, "Merge bug fixes", "Merge functional bug fixes into the release branch", false, 120, domain.RepositoryApp, "", ""},
	{8, domain.StepTypeRegressionBuildAndShare, "Regression build", "Build the regression build and share it with QA", true, 45, "", "", ""},
	{9, domain.StepTypeRegressionQASignoff, "Regression QA sign-off", "QA signs off the regression build", true, 960, "", "", ""},
	{10, domain.StepTypeRegressionProductSignoff, "Regression product sign-off", "Product signs off the regression build", true, 240, "", "", ""},
	{11, domain.StepTypeConfigDeployment, "Deploy production config", "Deploy remote configuration and feature flags to production", true, 60, "", "", ""},
	{12, domain.StepTypeProdRegressionBuildAndShare, "Production regression build", "Build against production backends and share it with QA", true, 45, "", "", ""},
	{13, domain.StepTypeProdRegressionQASignoff, "Production regression sign-off", "QA signs off the production regression build", true, 480, "", "", ""},
	{14, domain.StepTypeBackMerge, "Back-merge release to develop (App)", "Merge release back into develop in the app repository", true, 30, domain.RepositoryApp, "release", "develop"},
	{15, domain.StepTypeBackMerge, "Back-merge release to develop (BFF)", "Merge release back into develop in the BFF repository", true, 30, domain.RepositoryBFF, "release", "develop"},
	{16, domain.StepTypeReleaseToMasterMerge, "Merge release to master (App)", "Merge release into master in the app repository", true, 30, domain.RepositoryApp, "release", "master"},
	{17, domain.StepTypeReleaseToMasterMerge, "Merge release to master (BFF)", "Merge release into master in the BFF repository", true, 30, domain.RepositoryBFF, "release", "master"},
	{18, domain.StepTypeReleaseTag, "Tag release", "Create the release tag on master", true, 15, "", "", ""},
	{19, domain.StepTypeReleaseNotes, "Release notes", "Prepare store release notes", true, 60, "", "", ""},
	{20, domain.StepTypeStoreSubmission, "Store submission", "Submit the build for store review", true, 60, "", "", ""},
	{21, domain.StepTypeStoreApproval, "Store approval", "Wait for store review approval", true, 1440, "", "", ""},
	{22, domain.StepTypeBetaRollout100, "Beta rollout 100%", "Roll the build out to 100% of beta users", true, 1440, "", "", ""},
	{23, domain.StepTypePublishRollout99_9999, "Publish rollout 99.9999%", "Publish the build with a 99.9999% staged rollout hold", true, 60, "", "", ""},
	{24, domain.StepTypeProductionRollout5, "Production rollout 5%", "Increase production rollout to 5%", true, 1440, "", "", ""},
	{25, domain.StepTypeProductionRollout30, "Production rollout 30%", "Increase production rollout to 30%", true, 1440, "", "", ""},
	{26, domain.StepTypeProductionRollout50, "Production rollout 50%", "Increase production rollout to 50%", true, 1440, "", "", ""},
	{27, domain.StepTypeProductionRollout75, "Production rollout 75%", "Increase production rollout to 75%", true, 1440, "", "", ""},
	{28, domain.StepTypeProductionRollout99_99999, "Production rollout 99.99999%", "Complete the production rollout", true, 1440, "", "", ""},
	{29, domain.StepTypePostReleaseMonitoring, "Post-release monitoring", "Watch crash-free rate and key metrics after full rollout", false, 2880, "", "", ""},
}

// DefaultPipeline возвращает копию шаблона pipeline.
func DefaultPipeline() []StepTemplate {
	out := make([]StepTemplate, len(defaultPipeline))
	copy(out, defaultPipeline[:])
	return out
}

// InstantiatePipeline создаёт шаги нового релиза из шаблона.
//
// Порядок шагов берётся из шаблона (StepNumber) и не выводится из DependsOn.
func InstantiatePipeline(releaseID uuid.UUID, now time.Time) []domain.WorkflowStep {
	steps := make([]domain.WorkflowStep, 0, len(defaultPipeline))
	for _, tmpl := range defaultPipeline {
		steps = append(steps, domain.WorkflowStep{
			ID:                   uuid.New(),
			ReleaseID:            releaseID,
			StepNumber:           tmpl.StepNumber,
			Type:                 tmpl.Type,
			Title:                tmpl.Title,
			Description:          tmpl.Description,
			Status:               domain.StepStatusPending,
			IsRequired:           tmpl.IsRequired,
			EstimatedDurationMin: tmpl.EstimatedDurationMin,
			RepositoryType:       tmpl.RepositoryType,
			SourceBranch:         tmpl.SourceBranch,
			TargetBranch:         tmpl.TargetBranch,
			CreatedAt:            now,
			UpdatedAt:            now,
		})
	}
	return steps
}

// EstimatedPipelineDuration возвращает суммарную оценку длительности шаблона.
func EstimatedPipelineDuration() time.Duration {
	total := 0
	for _, tmpl := range defaultPipeline {
		total += tmpl.EstimatedDurationMin
	}
	return time.Duration(total) * time.Minute
}

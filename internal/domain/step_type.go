package domain

// StepType — вид шага релизного pipeline.
type StepType string

// Виды шагов.
const (
	StepTypeCodeFreeze                  StepType = "CODE_FREEZE"
	StepTypePRMerge                     StepType = "PR_MERGE"
	StepTypeFunctionalBuildAndShare     StepType = "FUNCTIONAL_BUILD_AND_SHARE"
	StepTypeFunctionalQASignoff         StepType = "FUNCTIONAL_QA_SIGNOFF"
	StepTypeFunctionalProductSignoff    StepType = "FUNCTIONAL_PRODUCT_SIGNOFF"
	StepTypeBugFixMerge                 StepType = "BUG_FIX_MERGE"
	StepTypeRegressionBuildAndShare     StepType = "REGRESSION_BUILD_AND_SHARE"
	StepTypeRegressionQASignoff         StepType = "REGRESSION_QA_SIGNOFF"
	StepTypeRegressionProductSignoff    StepType = "REGRESSION_PRODUCT_SIGNOFF"
	StepTypeConfigDeployment            StepType = "CONFIG_DEPLOYMENT"
	StepTypeProdRegressionBuildAndShare StepType = "PROD_REGRESSION_BUILD_AND_SHARE"
	StepTypeProdRegressionQASignoff     StepType = "PROD_REGRESSION_QA_SIGNOFF"
	StepTypeBackMerge                   StepType = "BACK_MERGE"
	StepTypeReleaseToMasterMerge        StepType = "RELEASE_TO_MASTER_MERGE"
	StepTypeReleaseTag                  StepType = "RELEASE_TAG"
	StepTypeReleaseNotes                StepType = "RELEASE_NOTES"
	StepTypeStoreSubmission             StepType = "STORE_SUBMISSION"
	StepTypeStoreApproval               StepType = "STORE_APPROVAL"
	StepTypeBetaRollout100              StepType = "BETA_ROLLOUT_100"
	StepTypePublishRollout99_9999       StepType = "PUBLISH_ROLLOUT_99_9999"
	StepTypeProductionRollout5          StepType = "PRODUCTION_ROLLOUT_5"
	StepTypeProductionRollout30         StepType = "PRODUCTION_ROLLOUT_30"
	StepTypeProductionRollout50         StepType = "PRODUCTION_ROLLOUT_50"
	StepTypeProductionRollout75         StepType = "PRODUCTION_ROLLOUT_75"
	StepTypeProductionRollout99_99999   StepType = "PRODUCTION_ROLLOUT_99_99999"
	StepTypePostReleaseMonitoring       StepType = "POST_RELEASE_MONITORING"
	StepTypeBuildStaging                StepType = "BUILD_STAGING"
	StepTypeBuildProduction             StepType = "BUILD_PRODUCTION"
	StepTypeDeploymentStaging           StepType = "DEPLOYMENT_STAGING"
	StepTypeDeploymentProduction        StepType = "DEPLOYMENT_PRODUCTION"
	StepTypeManualApproval              StepType = "MANUAL_APPROVAL"
	StepTypeCustom                      StepType = "CUSTOM"
)

// AllStepTypes — все известные виды шагов в стабильном порядке.
var AllStepTypes = []StepType{
	StepTypeCodeFreeze,
	StepTypePRMerge,
	StepTypeFunctionalBuildAndShare,
	StepTypeFunctionalQASignoff,
	StepTypeFunctionalProductSignoff,
	StepTypeBugFixMerge,
	StepTypeRegressionBuildAndShare,
	StepTypeRegressionQASignoff,
	StepTypeRegressionProductSignoff,
	StepTypeConfigDeployment,
	StepTypeProdRegressionBuildAndShare,
	StepTypeProdRegressionQASignoff,
	StepTypeBackMerge,
	StepTypeReleaseToMasterMerge,
	StepTypeReleaseTag,
	StepTypeReleaseNotes,
	StepTypeStoreSubmission,
	StepTypeStoreApproval,
	StepTypeBetaRollout100,
	StepTypePublishRollout99_9999,
	StepTypeProductionRollout5,
	StepTypeProductionRollout30,
	StepTypeProductionRollout50,
	StepTypeProductionRollout75,
	StepTypeProductionRollout99_99999,
	StepTypePostReleaseMonitoring,
	StepTypeBuildStaging,
	StepTypeBuildProduction,
	StepTypeDeploymentStaging,
	StepTypeDeploymentProduction,
	StepTypeManualApproval,
	StepTypeCustom,
}

// buildStepTypes — шаги, которые запускают сборку через CI workflow.
var buildStepTypes = map[StepType]bool{
	StepTypeFunctionalBuildAndShare:     true,
	StepTypeRegressionBuildAndShare:     true,
	StepTypeProdRegressionBuildAndShare: true,
	StepTypeBuildStaging:                true,
	StepTypeBuildProduction:             true,
}

// IsBuild возвращает true для build/share шагов.
func (t StepType) IsBuild() bool {
	return buildStepTypes[t]
}

// IsValid проверяет, что тип шага известен.
func (t StepType) IsValid() bool {
	for _, known := range AllStepTypes {
		if t == known {
			return true
		}
	}
	return false
}

// String возвращает строковое представление StepType.
func (t StepType) String() string {
	return string(t)
}

// RepositoryType — репозиторий, к которому относится шаг.
type RepositoryType string

const (
	RepositoryApp RepositoryType = "app"
	RepositoryBFF RepositoryType = "bff"
)

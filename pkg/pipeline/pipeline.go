// Package pipeline submits named server-side computation jobs (classify,
// allocate, pay, and the rest of the processing stages) and models their
// run state.
//
// Submission is a single remote call returning a handle with the run's
// sequence identifier; it never blocks waiting for completion. Polling for
// a terminal state is the caller's responsibility via a read on the
// pipelines endpoint.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Command tags on the submission payload.
const (
	CommandPipelineRun = "PipelineRun"
	CommandImport      = "Import"
	CommandXMLImport   = "XMLImport"
)

// Stage identifies a processing stage by its server-side stage-type
// sequence. The values are fixed wire constants of the remote service.
type Stage string

const (
	StageClassify          Stage = "21673573206720515"
	StageAllocate          Stage = "21673573206720516"
	StageReward            Stage = "21673573206720518"
	StagePay               Stage = "21673573206720519"
	StageSummarize         Stage = "21673573206720531"
	StageCompensate        Stage = "21673573206720530"
	StageCompensateAndPay  Stage = "21673573206720532"
	StagePost              Stage = "21673573206720520"
	StageFinalize          Stage = "21673573206720521"
	StageResetFromClassify Stage = "21673573206720514"
	StageResetFromAllocate Stage = "21673573206720523"
	StageResetFromReward   Stage = "21673573206720522"
	StageResetFromPay      Stage = "21673573206720526"
	StageUndoPost          Stage = "21673573206720718"
	StageUndoFinalize      Stage = "21673573206720721"
	StagePurge             Stage = "21673573206720573"

	StageValidate            Stage = "21673573206720533"
	StageTransfer            Stage = "21673573206720534"
	StageValidateAndTransfer Stage = "21673573206720536"
	StageTransferIfAllValid  Stage = "21673573206720535"
	StageResetFromValidate   Stage = "21673573206720525"

	StageXMLImport Stage = "21673573206720693"
)

// stageNames resolves the user-facing stage names to their sequences.
var stageNames = map[string]Stage{
	"classify":            StageClassify,
	"allocate":            StageAllocate,
	"reward":              StageReward,
	"pay":                 StagePay,
	"summarize":           StageSummarize,
	"compensate":          StageCompensate,
	"compensateAndPay":    StageCompensateAndPay,
	"post":                StagePost,
	"finalize":            StageFinalize,
	"resetFromClassify":   StageResetFromClassify,
	"resetFromAllocate":   StageResetFromAllocate,
	"resetFromReward":     StageResetFromReward,
	"resetFromPay":        StageResetFromPay,
	"undoPost":            StageUndoPost,
	"undoFinalize":        StageUndoFinalize,
	"purge":               StagePurge,
	"validate":            StageValidate,
	"transfer":            StageTransfer,
	"validateAndTransfer": StageValidateAndTransfer,
	"transferIfAllValid":  StageTransferIfAllValid,
	"resetFromValidate":   StageResetFromValidate,
}

// StageByName resolves a stage from its user-facing name.
func StageByName(name string) (Stage, bool) {
	s, ok := stageNames[name]
	return s, ok
}

// StageNames returns the known stage names, sorted.
func StageNames() []string {
	names := make([]string, 0, len(stageNames))
	for name := range stageNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunMode selects the scope of a PipelineRun job.
type RunMode string

const (
	RunModeFull        RunMode = "full"
	RunModeIncremental RunMode = "incremental"
	RunModePositions   RunMode = "positions"
)

// ImportRunMode selects which staged rows an import job processes.
type ImportRunMode string

const (
	ImportAll ImportRunMode = "all"
	ImportNew ImportRunMode = "new"
)

// StageGroup names a family of stage tables purged or imported together.
type StageGroup string

const (
	TransactionalData  StageGroup = "TransactionalData"
	OrganizationData   StageGroup = "OrganizationData"
	ClassificationData StageGroup = "ClassificationData"
	PlanRelatedData    StageGroup = "PlanRelatedData"
)

// stageTables maps a stage group to the staging tables it covers.
var stageTables = map[StageGroup][]string{
	TransactionalData: {
		"TransactionAndCredit",
		"Deposit",
	},
	OrganizationData: {
		"Participant",
		"Position",
		"Title",
		"PositionRelation",
	},
	ClassificationData: {
		"Category",
		"Category_Classifiers",
		"Customer",
		"Product",
		"PostalCode",
		"GenericClassifier",
	},
	PlanRelatedData: {
		"FixedValue",
		"VariableAssignment",
		"Quota",
		"RelationalMDLT",
	},
}

// MissingParameterError reports required job parameters that were not
// supplied. No remote call is made; the job must be corrected and
// resubmitted.
type MissingParameterError struct {
	Job        string
	Parameters []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s job is missing required parameters: %s",
		e.Job, strings.Join(e.Parameters, ", "))
}

// requiredParams runs the Required rule over each named parameter and
// reports every missing one in a single MissingParameterError, sorted by
// parameter name.
func requiredParams(job string, params map[string]any) error {
	var missing []string
	for name, value := range params {
		if err := validation.Validate(value, validation.Required); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingParameterError{Job: job, Parameters: missing}
}

// Job is a submittable pipeline job. Payload is only called after Validate
// succeeds.
type Job interface {
	// Name is the job's human-readable tag, used in errors and logs.
	Name() string

	// Validate checks required parameters and parameter combinations.
	Validate() error

	// Payload renders the submission body.
	Payload() map[string]any
}

// RunJob runs one processing stage over a calendar period. Calendar and
// period sequences are mandatory; the stage runs against the whole period
// in full mode unless a narrower run mode is selected.
type RunJob struct {
	Stage       Stage
	CalendarSeq string
	PeriodSeq   string

	// RunMode defaults to full. Positions mode requires PositionGroups or
	// PositionSeqs (not both); full and incremental modes forbid them.
	RunMode        RunMode
	PositionGroups []string
	PositionSeqs   []string

	ProcessingUnitSeq string
	RunStats          bool
}

func (j *RunJob) Name() string { return "PipelineRun" }

func (j *RunJob) Validate() error {
	if err := requiredParams(j.Name(), map[string]any{
		"stageTypeSeq": string(j.Stage),
		"calendarSeq":  j.CalendarSeq,
		"periodSeq":    j.PeriodSeq,
	}); err != nil {
		return err
	}

	mode := j.RunMode
	if mode == "" {
		mode = RunModeFull
	}
	if err := validation.Validate(string(mode), validation.In(
		string(RunModeFull), string(RunModeIncremental), string(RunModePositions),
	)); err != nil {
		return fmt.Errorf("unknown run mode %q", mode)
	}
	switch mode {
	case RunModeFull, RunModeIncremental:
		if len(j.PositionGroups) > 0 || len(j.PositionSeqs) > 0 {
			return fmt.Errorf("run mode %q does not accept position groups or seqs", mode)
		}
	case RunModePositions:
		if len(j.PositionGroups) == 0 && len(j.PositionSeqs) == 0 {
			return &MissingParameterError{Job: j.Name(),
				Parameters: []string{"positionGroups or positionSeqs"}}
		}
		if len(j.PositionGroups) > 0 && len(j.PositionSeqs) > 0 {
			return fmt.Errorf("provide either position groups or position seqs, not both")
		}
	}
	return nil
}

func (j *RunJob) Payload() map[string]any {
	mode := j.RunMode
	if mode == "" {
		mode = RunModeFull
	}
	payload := map[string]any{
		"command":      CommandPipelineRun,
		"stageTypeSeq": string(j.Stage),
		"calendarSeq":  j.CalendarSeq,
		"periodSeq":    j.PeriodSeq,
		"runMode":      string(mode),
		"runStats":     j.RunStats,
	}
	if len(j.PositionGroups) > 0 {
		payload["positionGroups"] = j.PositionGroups
	}
	if len(j.PositionSeqs) > 0 {
		payload["positionSeqs"] = j.PositionSeqs
	}
	if j.ProcessingUnitSeq != "" {
		payload["processingUnitSeq"] = j.ProcessingUnitSeq
	}
	return payload
}

// ImportJob validates or transfers a staged batch. The batch name is
// mandatory; calendar and period bound the import when supplied.
type ImportJob struct {
	Stage       Stage
	BatchName   string
	CalendarSeq string
	PeriodSeq   string
	RunMode     ImportRunMode
	RunStats    bool
}

func (j *ImportJob) Name() string { return "Import" }

func (j *ImportJob) Validate() error {
	return requiredParams(j.Name(), map[string]any{
		"stageTypeSeq": string(j.Stage),
		"batchName":    j.BatchName,
	})
}

func (j *ImportJob) Payload() map[string]any {
	payload := map[string]any{
		"command":      CommandImport,
		"stageTypeSeq": string(j.Stage),
		"batchName":    j.BatchName,
		"runStats":     j.RunStats,
	}
	if j.CalendarSeq != "" {
		payload["calendarSeq"] = j.CalendarSeq
	}
	if j.PeriodSeq != "" {
		payload["periodSeq"] = j.PeriodSeq
	}
	if j.RunMode != "" {
		payload["runMode"] = string(j.RunMode)
	}
	return payload
}

// PurgeJob removes a staged batch's rows from the stage tables of one
// stage group.
type PurgeJob struct {
	BatchName string
	Group     StageGroup
}

func (j *PurgeJob) Name() string { return "Purge" }

func (j *PurgeJob) Validate() error {
	if err := requiredParams(j.Name(), map[string]any{
		"batchName": j.BatchName,
		"module":    string(j.Group),
	}); err != nil {
		return err
	}
	if _, ok := stageTables[j.Group]; !ok {
		return fmt.Errorf("unknown stage group %q", j.Group)
	}
	return nil
}

func (j *PurgeJob) Payload() map[string]any {
	return map[string]any{
		"command":      CommandPipelineRun,
		"stageTypeSeq": string(StagePurge),
		"batchName":    j.BatchName,
		"module":       string(j.Group),
		"stageTables":  stageTables[j.Group],
	}
}

// XMLImportJob imports a plan-data XML document.
type XMLImportJob struct {
	FileName              string
	FileContent           string
	UpdateExistingObjects bool
}

func (j *XMLImportJob) Name() string { return "XMLImport" }

func (j *XMLImportJob) Validate() error {
	return requiredParams(j.Name(), map[string]any{
		"xmlFileName":    j.FileName,
		"xmlFileContent": j.FileContent,
	})
}

func (j *XMLImportJob) Payload() map[string]any {
	return map[string]any{
		"command":               CommandXMLImport,
		"stageTypeSeq":          string(StageXMLImport),
		"xmlFileName":           j.FileName,
		"xmlFileContent":        j.FileContent,
		"updateExistingObjects": j.UpdateExistingObjects,
	}
}

// Handle identifies a submitted pipeline run. It carries only the run's
// sequence identifier; state and status must be read separately.
type Handle struct {
	RunSeq string
}

// Submitter is the remote capability that performs the submission call.
// pkg/client implements it.
type Submitter interface {
	SubmitJob(ctx context.Context, payload map[string]any) (runSeq string, err error)
}

// Submit validates the job and submits it, returning a handle for polling.
// Validation failures surface before any remote call.
func Submit(ctx context.Context, remote Submitter, job Job) (*Handle, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	runSeq, err := remote.SubmitJob(ctx, job.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s job: %w", job.Name(), err)
	}
	return &Handle{RunSeq: runSeq}, nil
}

package domain

// ParamType is the frozen parameter type tag enumeration. Adding a tag
// requires a converter entry in the parameter mapper's dispatch table;
// unknown tags are rejected at validation.
type ParamType string

const (
	ParamString      ParamType = "string"
	ParamNumber      ParamType = "number"
	ParamBoolean     ParamType = "boolean"
	ParamDate        ParamType = "date"
	ParamJSON        ParamType = "json"
	ParamSecret      ParamType = "secret"
	ParamIntegration ParamType = "integration"
	ParamQueue       ParamType = "queue"
	ParamDatabase    ParamType = "database"
	ParamDataset     ParamType = "dataset"
	ParamEmail       ParamType = "email"
	ParamBlob        ParamType = "blob"
	ParamImage       ParamType = "image"
	ParamAudio       ParamType = "audio"
	ParamVideo       ParamType = "video"
	ParamDocument    ParamType = "document"
	ParamGLTF        ParamType = "gltf"
	ParamPoint       ParamType = "point"
	ParamLineString  ParamType = "linestring"
	ParamPolygon     ParamType = "polygon"
	ParamGeoJSON     ParamType = "geojson"
	ParamAny         ParamType = "any"
)

// knownParamTypes backs ValidParamType; keep in lockstep with the constants
// above.
var knownParamTypes = map[ParamType]bool{
	ParamString: true, ParamNumber: true, ParamBoolean: true, ParamDate: true,
	ParamJSON: true, ParamSecret: true, ParamIntegration: true, ParamQueue: true,
	ParamDatabase: true, ParamDataset: true, ParamEmail: true, ParamBlob: true,
	ParamImage: true, ParamAudio: true, ParamVideo: true, ParamDocument: true,
	ParamGLTF: true, ParamPoint: true, ParamLineString: true, ParamPolygon: true,
	ParamGeoJSON: true, ParamAny: true,
}

func ValidParamType(t ParamType) bool { return knownParamTypes[t] }

// blobFamily is every type tag whose node form is an in-memory byte blob
// and whose wire form is an object reference.
var blobFamily = map[ParamType]bool{
	ParamBlob: true, ParamImage: true, ParamAudio: true, ParamVideo: true,
	ParamDocument: true, ParamGLTF: true,
}

func IsBlobFamily(t ParamType) bool { return blobFamily[t] }

var geoJSONFamily = map[ParamType]bool{
	ParamPoint: true, ParamLineString: true, ParamPolygon: true, ParamGeoJSON: true,
}

func IsGeoJSONFamily(t ParamType) bool { return geoJSONFamily[t] }

var jsonFamily = map[ParamType]bool{
	ParamJSON: true,
}

func IsJSONFamily(t ParamType) bool { return jsonFamily[t] || geoJSONFamily[t] }

// runtimeServiceParam is every type tag resolved by asking a service rather
// than by converting a wire value.
var runtimeServiceParam = map[ParamType]bool{
	ParamSecret: true, ParamIntegration: true, ParamQueue: true,
	ParamDatabase: true, ParamDataset: true, ParamEmail: true,
}

func IsRuntimeServiceParam(t ParamType) bool { return runtimeServiceParam[t] }

// TypesCompatible implements the edge type-compatibility rule from the
// validator: any accepts anything, and blob-family tags are mutually
// interchangeable (a generic blob input can receive a typed image output
// and vice versa).
func TypesCompatible(source, target ParamType) bool {
	if source == ParamAny || target == ParamAny {
		return true
	}
	if source == target {
		return true
	}
	if IsBlobFamily(source) && IsBlobFamily(target) {
		return true
	}
	return false
}

// TriggerType is how a workflow execution is initiated.
type TriggerType string

const (
	TriggerManual TriggerType = "manual"
	TriggerHTTP   TriggerType = "http"
	TriggerEmail  TriggerType = "email"
	TriggerQueue  TriggerType = "queue"
	TriggerCron   TriggerType = "cron"
)

// NodeExecutionStatus is the per-node outcome recorded on a NodeExecution
// entry (the persisted/reported projection, distinct from the three
// internal ExecutionState sets).
type NodeExecutionStatus string

const (
	NodeCompleted NodeExecutionStatus = "completed"
	NodeError     NodeExecutionStatus = "error"
	NodeSkipped   NodeExecutionStatus = "skipped"
	NodePending   NodeExecutionStatus = "pending"
)

// SkipReason classifies why a skipped node never ran.
type SkipReason string

const (
	SkipUpstreamFailure  SkipReason = "upstream_failure"
	SkipConditionalBranch SkipReason = "conditional_branch"
)

// WorkflowStatus is the derived terminal (or in-flight) status of a run.
type WorkflowStatus string

const (
	WorkflowExecuting WorkflowStatus = "executing"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowError     WorkflowStatus = "error"
)

package models

import "time"

// RepoRef identifies a remote repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Repo }

// RepoMetadata is supplied by the access check before a run starts.
type RepoMetadata struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description,omitempty"`
	Language      string    `json:"language,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Private       bool      `json:"private"`
	Topics        []string  `json:"topics,omitempty"`
	License       string    `json:"license,omitempty"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	HTMLURL       string    `json:"html_url,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// DirEntry is one item returned by a directory listing.
type DirEntry struct {
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	Type           EntryType `json:"type"`
	Size           int64     `json:"size"`
	ContentLocator string    `json:"content_locator,omitempty"`
}

type FileEntry struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	Size           int64  `json:"size"`
	ContentLocator string `json:"content_locator"`
}

type PrioritizedFile struct {
	FileEntry
	Priority int `json:"priority"`
}

type AnalysisKind string

const (
	KindScript       AnalysisKind = "script"
	KindConfig       AnalysisKind = "markup-config"
	KindUnstructured AnalysisKind = "unstructured"
)

type Import struct {
	Source     string   `json:"source"`
	BoundNames []string `json:"bound_names,omitempty"`
}

type Function struct {
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	IsAsync bool     `json:"is_async"`
}

type Class struct {
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
}

type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	File   string `json:"file,omitempty"`
}

// FileAnalysis is the per-file result of the language analyzers.
type FileAnalysis struct {
	Filename           string         `json:"filename"`
	Path               string         `json:"path"`
	Kind               AnalysisKind   `json:"kind"`
	Imports            []Import       `json:"imports,omitempty"`
	Functions          []Function     `json:"functions,omitempty"`
	Classes            []Class        `json:"classes,omitempty"`
	APIRoutes          []Route        `json:"api_routes,omitempty"`
	FrameworksDetected []string       `json:"frameworks_detected,omitempty"`
	FeaturesDetected   []string       `json:"features_detected,omitempty"`
	FeatureCounts      map[string]int `json:"feature_counts,omitempty"`
	CodeExcerpt        string         `json:"code_excerpt"`
}

type Archetype string

const (
	ArchetypeFrontend    Archetype = "Frontend Web Application"
	ArchetypeBackend     Archetype = "Backend API Server"
	ArchetypeML          Archetype = "Machine Learning Application"
	ArchetypeAPIService  Archetype = "API Service"
	ArchetypeDataTool    Archetype = "Data Analysis Tool"
	ArchetypeApplication Archetype = "Software Application"
)

type SemanticSummary struct {
	ProjectArchetype   Archetype `json:"project_archetype"`
	TechnologyStack    []string  `json:"technology_stack"`
	MainFeatures       []string  `json:"main_features"`
	APIEndpoints       []Route   `json:"api_endpoints"`
	BusinessLogicNotes []string  `json:"business_logic_notes"`
}

type Phase string

const (
	PhaseParsing    Phase = "parsing"
	PhaseFetching   Phase = "fetching"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseGenerating Phase = "generating"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Terminal reports whether the phase ends a run's event stream.
func (p Phase) Terminal() bool { return p == PhaseComplete || p == PhaseError }

type ProgressEvent struct {
	Phase                     Phase  `json:"phase"`
	Percent                   int    `json:"percent"`
	Message                   string `json:"message"`
	EstimatedSecondsRemaining *int   `json:"estimated_seconds_remaining,omitempty"`
}

type GeneratedDocument struct {
	MarkdownText  string          `json:"markdown"`
	SourceSummary SemanticSummary `json:"summary"`
}

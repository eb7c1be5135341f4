// Package models holds the domain entities shared across the capture,
// segmentation, analysis, and retention pipeline.
package models

// DeviceType identifies the operating system a capture session ran on.
type DeviceType string

const (
	DeviceWindows DeviceType = "windows"
	DeviceMacOS   DeviceType = "macos"
	DeviceLinux   DeviceType = "linux"
	DeviceUnknown DeviceType = "unknown"
)

// AnalysisState is the session analysis state machine.
type AnalysisState string

const (
	AnalysisOpen      AnalysisState = "open"
	AnalysisClosed    AnalysisState = "closed"
	AnalysisAnalyzing AnalysisState = "analyzing"
	AnalysisAnalyzed  AnalysisState = "analyzed"
	AnalysisFailed    AnalysisState = "failed"
	AnalysisTooShort  AnalysisState = "too_short"
)

// ActivityCategory is the coarse six-class taxonomy canonical to this system.
// Fine-grained provider labels are mapped down to this set; see llm.FineToCoarse.
type ActivityCategory string

const (
	CategoryWork          ActivityCategory = "work"
	CategoryCommunication ActivityCategory = "communication"
	CategoryLearning      ActivityCategory = "learning"
	CategoryPersonal      ActivityCategory = "personal"
	CategoryIdle          ActivityCategory = "idle"
	CategoryOther         ActivityCategory = "other"
)

// TagSource distinguishes a model-produced tag from a user override so that
// add_manual_tag round-trips exactly without a second schema.
type TagSource string

const (
	TagSourceLLM    TagSource = "llm"
	TagSourceManual TagSource = "manual"
)

// ResolutionPolicy is the capture downscale target.
type ResolutionPolicy string

const (
	Resolution1080p    ResolutionPolicy = "1080p"
	Resolution2K       ResolutionPolicy = "2k"
	Resolution4K       ResolutionPolicy = "4k"
	ResolutionOriginal ResolutionPolicy = "original"
)

// FrameRecord is a single compressed screenshot.
type FrameRecord struct {
	ID           int64  `json:"id"`
	TimestampMs  int64  `json:"timestamp_ms"`
	FilePath     string `json:"file_path"` // relative to the frames root
	DisplayIndex int    `json:"display_index"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	ByteSize     int64  `json:"byte_size"`
	IsBlack      bool   `json:"is_black"`
	SessionID    *int64 `json:"session_id,omitempty"`
}

// ActivityTag labels an activity with a coarse category and confidence.
type ActivityTag struct {
	Category        ActivityCategory `json:"category"`
	Confidence      float64          `json:"confidence"`
	Keywords        []string         `json:"keywords,omitempty"`
	ProductivityScore *int           `json:"productivity_score,omitempty"`
	FocusScore        *int           `json:"focus_score,omitempty"`
	Source          TagSource        `json:"source"`
}

// Distraction is an interruption noted inside a TimelineCard.
type Distraction struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
}

// TimelineCard is a labeled sub-interval inside a session.
type TimelineCard struct {
	StartTime         string        `json:"start_time"`
	EndTime           string        `json:"end_time"`
	Category          ActivityCategory `json:"category"`
	Title             string        `json:"title"`
	Summary           string        `json:"summary"`
	DetailedSummary   string        `json:"detailed_summary"`
	Distractions      []Distraction `json:"distractions,omitempty"`
	Apps              []string      `json:"apps,omitempty"`
	Sites             []string      `json:"sites,omitempty"`
	VideoPreviewPath  *string       `json:"video_preview_path,omitempty"`
}

// Session is a contiguous activity window.
type Session struct {
	ID              int64          `json:"id"`
	StartTimeMs     int64          `json:"start_time_ms"`
	EndTimeMs       int64          `json:"end_time_ms"`
	DeviceName      string         `json:"device_name"`
	DeviceType      DeviceType     `json:"device_type"`
	Title           string         `json:"title,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	DetailedSummary string         `json:"detailed_summary,omitempty"`
	Tags            []ActivityTag  `json:"tags,omitempty"`
	TimelineCards   []TimelineCard `json:"timeline_cards,omitempty"`
	VideoPath       *string        `json:"video_path,omitempty"`
	AnalysisState   AnalysisState  `json:"analysis_state"`
	FrameCount      int            `json:"frame_count"`
	LastError       string         `json:"last_error,omitempty"`
}

// LLMCall is an audit record for one provider invocation.
type LLMCall struct {
	ID               string `json:"id"`
	SessionID        *int64 `json:"session_id,omitempty"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	LatencyMs        int64  `json:"latency_ms"`
	InputTokenCount  int    `json:"input_token_count"`
	OutputTokenCount int    `json:"output_token_count"`
	RequestDigest    string `json:"request_digest"`
	ResponseDigest   string `json:"response_digest"`
	Error            string `json:"error,omitempty"`
	CreatedAtMs      int64  `json:"created_at_ms"`
}

// VideoSegment is a provider-proposed chaptering of a session's frames.
type VideoSegment struct {
	StartTimestamp string `json:"start_timestamp"` // MM:SS
	EndTimestamp   string `json:"end_timestamp"`   // MM:SS
	Description    string `json:"description"`
}

// SessionBrief is the compact session shape fed into day-summary generation.
type SessionBrief struct {
	SessionID int64         `json:"session_id"`
	Title     string        `json:"title,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Tags      []ActivityTag `json:"tags,omitempty"`
	StartMs   int64         `json:"start_ms"`
	EndMs     int64         `json:"end_ms"`
	Device    string        `json:"device,omitempty"`
}

// SessionSummary is what a provider returns from AnalyzeFrames.
type SessionSummary struct {
	Title           string        `json:"title"`
	Summary         string        `json:"summary"`
	DetailedSummary string        `json:"detailed_summary"`
	Tags            []ActivityTag `json:"tags,omitempty"`
}

// StorageStats reports the store's footprint, used by get_storage_stats.
type StorageStats struct {
	DBBytes            int64            `json:"db_bytes"`
	FramesBytes        int64            `json:"frames_bytes"`
	VideosBytes        int64            `json:"videos_bytes"`
	SessionCount       int              `json:"session_count"`
	FrameCount         int              `json:"frame_count"`
	FramesByDeviceType map[DeviceType]int `json:"frames_by_device_type,omitempty"`
}

// DayActivity is one day's roll-up for the calendar view.
type DayActivity struct {
	Date         string                     `json:"date"`
	SessionCount int                        `json:"session_count"`
	TotalMinutes float64                    `json:"total_minutes"`
	TagMix       map[ActivityCategory]int `json:"tag_mix,omitempty"`
}

package dto

import "github.com/google/uuid"

// JobMessage is the snapshot handed to the broker at submission time. The
// worker locates every input through it and never re-derives paths from the
// job record.
type JobMessage struct {
	JobId              uuid.UUID `json:"jobId"`
	SourceVideoRef     string    `json:"sourceVideoRef"`
	OverlayTemplateRef string    `json:"overlayTemplateRef"`
	CaptionText        string    `json:"captionText"`
}

// MediaDescriptor is computed per run from container metadata and never
// persisted.
type MediaDescriptor struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	HasAudioStream  bool    `json:"hasAudioStream"`
	DurationSeconds float64 `json:"durationSeconds"`
	FileSizeBytes   int64   `json:"fileSizeBytes"`
	FrameRate       float64 `json:"frameRate"`
	VideoCodec      string  `json:"videoCodec"`
	AudioCodec      string  `json:"audioCodec"`
}

type SubmitRequest struct {
	OwnerId      uuid.UUID
	Name         string
	Speciality   string
	Hospital     string
	City         string
	VideoPath    string
	TemplatePath string
}

type JobStatusResponse struct {
	JobId        uuid.UUID `json:"jobId"`
	Status       string    `json:"status"`
	OutputRef    *string   `json:"outputRef,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
}

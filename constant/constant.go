package constant

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCompleted  JobStatus = "COMPLETED"
)

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type StorageBackend string

const (
	StorageBackendMinIO StorageBackend = "minio"
	StorageBackendS3    StorageBackend = "s3"
	StorageBackendGCS   StorageBackend = "gcs"
	StorageBackendSFTP  StorageBackend = "sftp"
	StorageBackendLocal StorageBackend = "local"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	// TopicProcessVideo is the routing key the submission path publishes to.
	TopicProcessVideo = "processVideo"

	ContentTypeMP4  = "video/mp4"
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)

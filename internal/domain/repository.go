package domain

// JobRepository persists pipeline jobs.
type JobRepository interface {
	Create(job *Job) error
	Update(job *Job) error
	Delete(id string) error
	FindByID(id string) (*Job, error)
	FindByStatus(status JobStatus) ([]*Job, error)
	FindPending() ([]*Job, error)
	FindAll(filters map[string]interface{}) ([]*Job, error)
	Count() (int64, error)
	CountByStatus(status JobStatus) (int64, error)
	GetStats() (*JobStats, error)
}

package infrastructure

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/vodgrab-go/internal/domain"
)

// SQLiteJobRepository implements JobRepository using SQLite
type SQLiteJobRepository struct {
	db *gorm.DB
}

// NewSQLiteJobRepository creates a new SQLite repository
func NewSQLiteJobRepository(dbPath string) (*SQLiteJobRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Job{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Create creates a new job
func (r *SQLiteJobRepository) Create(job *domain.Job) error {
	return r.db.Create(job).Error
}

// Update updates an existing job
func (r *SQLiteJobRepository) Update(job *domain.Job) error {
	return r.db.Save(job).Error
}

// Delete deletes a job by ID
func (r *SQLiteJobRepository) Delete(id string) error {
	return r.db.Delete(&domain.Job{}, "id = ?", id).Error
}

// FindByID finds a job by ID
func (r *SQLiteJobRepository) FindByID(id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.First(&job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByStatus finds jobs by status
func (r *SQLiteJobRepository) FindByStatus(status domain.JobStatus) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Where("status = ?", status).Find(&jobs).Error
	return jobs, err
}

// FindPending finds all queued jobs in submission order
func (r *SQLiteJobRepository) FindPending() ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Where("status = ?", domain.StatusQueued).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

// FindAll finds all jobs with optional filters
func (r *SQLiteJobRepository) FindAll(filters map[string]interface{}) ([]*domain.Job, error) {
	var jobs []*domain.Job
	query := r.db

	for key, value := range filters {
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// Count returns the total number of jobs
func (r *SQLiteJobRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Job{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of jobs by status
func (r *SQLiteJobRepository) CountByStatus(status domain.JobStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Job{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// GetStats returns queue statistics
func (r *SQLiteJobRepository) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{}

	if err := r.db.Model(&domain.Job{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.JobStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusQueued:
			stats.Queued = sc.Count
		case domain.StatusProcessing:
			stats.Processing = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteJobRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

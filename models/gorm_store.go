package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

// InitDB opens the MySQL connection and migrates the schema.
func InitDB(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Project{}, &Slide{}, &Script{}, &Video{}, &Job{}, &UserCredit{}, &CreditEntry{}); err != nil {
		return nil, err
	}
	log.Info().Msg("database connected and migrated")
	return &GormStore{db: db}, nil
}

// NewGormStore wraps an existing gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Projects

func (s *GormStore) CreateProject(p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.db.Create(p).Error
}

func (s *GormStore) GetProject(id string) (*Project, error) {
	var p Project
	if err := s.db.First(&p, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (s *GormStore) ProjectsByOwner(ownerID string) ([]Project, error) {
	var res []Project
	err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&res).Error
	return res, err
}

func (s *GormStore) DeleteProject(id string) error {
	return s.db.Delete(&Project{}, "id = ?", id).Error
}

func (s *GormStore) MarkProjectProcessing(id string) error {
	return s.db.Model(&Project{}).
		Where("id = ? AND status = ?", id, ProjectStatusDraft).
		Updates(map[string]interface{}{"status": ProjectStatusProcessing, "updated_at": time.Now()}).Error
}

func (s *GormStore) MarkProjectFailed(id, errMsg string) (bool, error) {
	res := s.db.Model(&Project{}).
		Where("id = ? AND status NOT IN ?", id, []string{ProjectStatusCompleted, ProjectStatusFailed}).
		Updates(map[string]interface{}{"status": ProjectStatusFailed, "error": errMsg, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) MarkProjectCompleted(id string) (bool, error) {
	res := s.db.Model(&Project{}).
		Where("id = ? AND status = ?", id, ProjectStatusProcessing).
		Updates(map[string]interface{}{"status": ProjectStatusCompleted, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) TryMarkRenderEnqueued(id string) (bool, error) {
	res := s.db.Model(&Project{}).
		Where("id = ? AND render_enqueued = ?", id, false).
		Updates(map[string]interface{}{"render_enqueued": true, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

// Slides

func (s *GormStore) CreateSlides(slides []Slide) error {
	if len(slides) == 0 {
		return nil
	}
	return s.db.Create(&slides).Error
}

func (s *GormStore) GetSlide(id string) (*Slide, error) {
	var sl Slide
	if err := s.db.First(&sl, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &sl, nil
}

func (s *GormStore) SlidesByProject(projectID string) ([]Slide, error) {
	var res []Slide
	err := s.db.Where("project_id = ?", projectID).Order("order_no ASC").Find(&res).Error
	return res, err
}

func (s *GormStore) SetSlideAudio(id, audioURL string, durationSec float64) error {
	return s.db.Model(&Slide{}).Where("id = ?", id).
		Updates(map[string]interface{}{"audio_url": audioURL, "duration_sec": durationSec, "updated_at": time.Now()}).Error
}

func (s *GormStore) CountSlidesMissingAudio(projectID string) (int, error) {
	var n int64
	err := s.db.Model(&Slide{}).
		Where("project_id = ? AND (audio_url IS NULL OR audio_url = '')", projectID).
		Count(&n).Error
	return int(n), err
}

func (s *GormStore) CountSlides(projectID string) (int, error) {
	var n int64
	err := s.db.Model(&Slide{}).Where("project_id = ?", projectID).Count(&n).Error
	return int(n), err
}

// Scripts

func (s *GormStore) ReplaceScript(sc *Script) error {
	sc.CreatedAt = time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Script{}, "slide_id = ?", sc.SlideID).Error; err != nil {
			return err
		}
		return tx.Create(sc).Error
	})
}

func (s *GormStore) GetScript(id string) (*Script, error) {
	var sc Script
	if err := s.db.First(&sc, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &sc, nil
}

func (s *GormStore) ScriptBySlide(slideID string) (*Script, error) {
	var sc Script
	if err := s.db.First(&sc, "slide_id = ?", slideID).Error; err != nil {
		return nil, translateErr(err)
	}
	return &sc, nil
}

// Videos

func (s *GormStore) CreateVideo(v *Video) error {
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	return s.db.Create(v).Error
}

func (s *GormStore) GetVideo(id string) (*Video, error) {
	var v Video
	if err := s.db.First(&v, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &v, nil
}

func (s *GormStore) VideoByProject(projectID string) (*Video, error) {
	var v Video
	if err := s.db.First(&v, "project_id = ?", projectID).Error; err != nil {
		return nil, translateErr(err)
	}
	return &v, nil
}

func (s *GormStore) updateVideo(id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return s.db.Model(&Video{}).Where("id = ?", id).Updates(updates).Error
}

func (s *GormStore) MarkVideoProcessing(id string) error {
	return s.updateVideo(id, map[string]interface{}{"status": VideoStatusProcessing})
}

func (s *GormStore) SetVideoArtifact(id, videoURL, thumbnailURL string, durationSec float64) error {
	return s.updateVideo(id, map[string]interface{}{
		"video_url":     videoURL,
		"thumbnail_url": thumbnailURL,
		"duration_sec":  durationSec,
	})
}

func (s *GormStore) SetVideoSubtitle(id, subtitleURL string) error {
	return s.updateVideo(id, map[string]interface{}{"subtitle_url": subtitleURL})
}

func (s *GormStore) MarkVideoCompleted(id string) error {
	return s.updateVideo(id, map[string]interface{}{"status": VideoStatusCompleted})
}

func (s *GormStore) MarkVideoFailed(id string) error {
	return s.updateVideo(id, map[string]interface{}{"status": VideoStatusFailed})
}

// Jobs

func (s *GormStore) CreateJob(j *Job) error {
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now
	return s.db.Create(j).Error
}

func (s *GormStore) GetJob(id string) (*Job, error) {
	var j Job
	if err := s.db.First(&j, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &j, nil
}

func (s *GormStore) JobsByProject(projectID string) ([]Job, error) {
	var res []Job
	err := s.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&res).Error
	return res, err
}

func (s *GormStore) MarkJobRunning(id string, startedAt time.Time) (bool, error) {
	res := s.db.Model(&Job{}).
		Where("id = ? AND status = ?", id, JobStatusPending).
		Updates(map[string]interface{}{"status": JobStatusRunning, "started_at": startedAt, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) ApplyJobProgress(id string, percent int) (bool, error) {
	res := s.db.Model(&Job{}).
		Where("id = ? AND status = ? AND progress <= ?", id, JobStatusRunning, percent).
		Updates(map[string]interface{}{"progress": percent, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) MarkJobTerminal(id, status string, result *JobResult, errMsg, errKind string, finishedAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": finishedAt,
		"updated_at":   time.Now(),
	}
	if status == JobStatusCompleted {
		updates["progress"] = 100
	}
	if result != nil {
		updates["result"] = *result
	}
	if errMsg != "" {
		updates["error"] = errMsg
		updates["error_kind"] = errKind
	}
	res := s.db.Model(&Job{}).
		Where("id = ? AND status NOT IN ?", id, []string{JobStatusCompleted, JobStatusFailed}).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// Credits

func (s *GormStore) EnsureUser(userID string, signupGrant int64) error {
	var uc UserCredit
	err := s.db.First(&uc, "user_id = ?", userID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	now := time.Now()
	uc = UserCredit{UserID: userID, Balance: signupGrant, CreatedAt: now, UpdatedAt: now}
	if err := s.db.Create(&uc).Error; err != nil {
		return err
	}
	if signupGrant > 0 {
		entry := CreditEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    signupGrant,
			Reason:    "signup grant",
			CreatedAt: now,
		}
		return s.db.Create(&entry).Error
	}
	return nil
}

func (s *GormStore) Balance(userID string) (int64, error) {
	var uc UserCredit
	if err := s.db.First(&uc, "user_id = ?", userID).Error; err != nil {
		return 0, translateErr(err)
	}
	return uc.Balance, nil
}

func (s *GormStore) Debit(userID string, amount int64, stage, jobID, reason string) (int64, bool, error) {
	var newBalance int64
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing CreditEntry
		err := tx.First(&existing, "job_id = ? AND stage_type = ?", jobID, stage).Error
		if err == nil {
			// Prior debit for this job: idempotent no-op.
			var uc UserCredit
			if err := tx.First(&uc, "user_id = ?", userID).Error; err != nil {
				return translateErr(err)
			}
			newBalance = uc.Balance
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		res := tx.Model(&UserCredit{}).
			Where("user_id = ? AND balance >= ?", userID, amount).
			Updates(map[string]interface{}{"balance": gorm.Expr("balance - ?", amount), "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientCredits
		}

		entry := CreditEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    -amount,
			Reason:    reason,
			JobID:     &jobID,
			StageType: stage,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		var uc UserCredit
		if err := tx.First(&uc, "user_id = ?", userID).Error; err != nil {
			return translateErr(err)
		}
		newBalance = uc.Balance
		applied = true
		return nil
	})
	return newBalance, applied, err
}

func (s *GormStore) AddCredit(userID string, amount int64, reason string) (int64, error) {
	var newBalance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserCredit{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{"balance": gorm.Expr("balance + ?", amount), "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		entry := CreditEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    amount,
			Reason:    reason,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		var uc UserCredit
		if err := tx.First(&uc, "user_id = ?", userID).Error; err != nil {
			return translateErr(err)
		}
		newBalance = uc.Balance
		return nil
	})
	return newBalance, err
}

func (s *GormStore) EntriesByUser(userID string) ([]CreditEntry, error) {
	var res []CreditEntry
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&res).Error
	return res, err
}

func (s *GormStore) EntryByJob(jobID, stage string) (*CreditEntry, error) {
	var e CreditEntry
	if err := s.db.First(&e, "job_id = ? AND stage_type = ?", jobID, stage).Error; err != nil {
		return nil, translateErr(err)
	}
	return &e, nil
}

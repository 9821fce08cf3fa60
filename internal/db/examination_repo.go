package db

import (
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// ExaminationRepo provides CRUD operations for examination records.
type ExaminationRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExaminationRepo creates a new ExaminationRepo.
func NewExaminationRepo(db *sql.DB, logger *zap.Logger) *ExaminationRepo {
	return &ExaminationRepo{db: db, logger: logger.Named("examination_repo")}
}

const examinationColumns = `id, elderly_id, exam_date,
	height_cm, weight_kg, bmi, bmi_category,
	systolic, diastolic, bp_category, bp_emergency,
	fasting_glucose, fasting_glucose_category,
	random_glucose, random_glucose_category,
	postprandial_glucose, postprandial_glucose_category,
	total_cholesterol, total_cholesterol_category,
	uric_acid, created_at, synced_at`

// validateExamination rejects malformed records before any write.
func validateExamination(rec *models.ExaminationRecord) error {
	switch {
	case rec == nil:
		return apperrors.New(apperrors.ErrValidation, "examination record is nil")
	case rec.ElderlyID == 0:
		return apperrors.New(apperrors.ErrValidation, "examination has no owning elderly id")
	case rec.ExamDate.IsZero():
		return apperrors.New(apperrors.ErrValidation, "examination date is missing")
	case !rec.HasPhysical() && !rec.HasLab():
		return apperrors.New(apperrors.ErrValidation, "examination carries no measurements")
	}
	return nil
}

func scanExamination(scan func(dest ...interface{}) error) (*models.ExaminationRecord, error) {
	var row examinationRow
	err := scan(
		&row.ID, &row.ElderlyID, &row.ExamDate,
		&row.HeightCM, &row.WeightKG, &row.BMI, &row.BMICategory,
		&row.Systolic, &row.Diastolic, &row.BPCategory, &row.BPEmergency,
		&row.FastingGlucose, &row.FastingGlucoseCategory,
		&row.RandomGlucose, &row.RandomGlucoseCategory,
		&row.PostprandialGlucose, &row.PostprandialGlucoseCategory,
		&row.TotalCholesterol, &row.TotalCholesterolCategory,
		&row.UricAcid, &row.CreatedAt, &row.SyncedAt)
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Create validates and persists a record, assigning a local id when the
// record does not carry one. Returns the assigned id.
func (r *ExaminationRepo) Create(rec *models.ExaminationRecord) (int64, error) {
	if err := validateExamination(rec); err != nil {
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	row := examinationToRow(rec)
	args := []interface{}{
		row.ElderlyID, row.ExamDate,
		row.HeightCM, row.WeightKG, row.BMI, row.BMICategory,
		row.Systolic, row.Diastolic, row.BPCategory, row.BPEmergency,
		row.FastingGlucose, row.FastingGlucoseCategory,
		row.RandomGlucose, row.RandomGlucoseCategory,
		row.PostprandialGlucose, row.PostprandialGlucoseCategory,
		row.TotalCholesterol, row.TotalCholesterolCategory,
		row.UricAcid, row.CreatedAt, row.SyncedAt,
	}

	var err error
	if rec.ID == 0 {
		var res sql.Result
		res, err = r.db.Exec(`
		INSERT INTO examination_records (elderly_id, exam_date,
			height_cm, weight_kg, bmi, bmi_category,
			systolic, diastolic, bp_category, bp_emergency,
			fasting_glucose, fasting_glucose_category,
			random_glucose, random_glucose_category,
			postprandial_glucose, postprandial_glucose_category,
			total_cholesterol, total_cholesterol_category,
			uric_acid, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err == nil {
			rec.ID, err = res.LastInsertId()
		}
	} else {
		_, err = r.db.Exec(`
		INSERT INTO examination_records (`+examinationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			append([]interface{}{row.ID}, args...)...)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Wrap(apperrors.ErrDuplicate, "examination record already exists", err)
		}
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to create examination record", err)
	}

	r.logger.Info("examination record created",
		zap.Int64("id", rec.ID),
		zap.Int64("elderly_id", rec.ElderlyID),
		zap.Bool("provisional", rec.SyncedAt == nil))
	return rec.ID, nil
}

// GetByID retrieves a record by local id, or nil when not found.
func (r *ExaminationRepo) GetByID(id int64) (*models.ExaminationRecord, error) {
	rec, err := scanExamination(r.db.QueryRow(
		`SELECT `+examinationColumns+` FROM examination_records WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read examination record", err)
	}
	return rec, nil
}

// ListByElderly returns the examinations of one elderly patient ordered
// newest-first by examination date, optionally restricted to a date range
// (inclusive on both ends).
func (r *ExaminationRepo) ListByElderly(elderlyID int64, from, to *time.Time) ([]*models.ExaminationRecord, error) {
	query := `SELECT ` + examinationColumns + ` FROM examination_records WHERE elderly_id = ?`
	args := []interface{}{elderlyID}
	if from != nil {
		query += ` AND exam_date >= ?`
		args = append(args, from.UTC().Format(dateLayout))
	}
	if to != nil {
		query += ` AND exam_date <= ?`
		args = append(args, to.UTC().Format(dateLayout))
	}
	query += ` ORDER BY exam_date DESC, id DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list examination records", err)
	}
	defer rows.Close()

	var records []*models.ExaminationRecord
	for rows.Next() {
		rec, err := scanExamination(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan examination record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate examination records", err)
	}
	return records, nil
}

// ExaminationUpdate carries the partial fields of an update; nil fields
// are left untouched.
type ExaminationUpdate struct {
	SyncedAt *time.Time
}

// Update merges the given fields into an existing record. Updating a
// missing id is a recorded no-op, not an error.
func (r *ExaminationRepo) Update(id int64, upd ExaminationUpdate) error {
	var sets []string
	var args []interface{}
	if upd.SyncedAt != nil {
		sets = append(sets, "synced_at = ?")
		args = append(args, upd.SyncedAt.Unix())
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.db.Exec(`UPDATE examination_records SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to update examination record", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Debug("examination update matched no rows", zap.Int64("id", id))
		return nil
	}
	r.logger.Info("examination record updated", zap.Int64("id", id))
	return nil
}

// ReassignElderly points examinations at a new elderly id. Called when a
// provisional elderly id is replaced by the server-assigned one so local
// history lookups keep working.
func (r *ExaminationRepo) ReassignElderly(oldID, newID int64) error {
	res, err := r.db.Exec(`UPDATE examination_records SET elderly_id = ? WHERE elderly_id = ?`, newID, oldID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to reassign examinations", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.Info("examinations reassigned",
			zap.Int64("old_elderly_id", oldID),
			zap.Int64("new_elderly_id", newID),
			zap.Int64("rows", n))
	}
	return nil
}

// Delete removes a record. Deleting a nonexistent id is not an error.
func (r *ExaminationRepo) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM examination_records WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete examination record", err)
	}
	n, _ := res.RowsAffected()
	r.logger.Info("examination record deleted", zap.Int64("id", id), zap.Int64("rows", n))
	return nil
}

// BulkUpsert reconciles a batch of records by local id inside a single
// transaction. A failure rolls back the whole batch.
func (r *ExaminationRepo) BulkUpsert(records []*models.ExaminationRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := validateExamination(rec); err != nil {
			return err
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC().Truncate(time.Second)
		}
		row := examinationToRow(rec)
		_, err := tx.Exec(`
		INSERT INTO examination_records (`+examinationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			elderly_id = excluded.elderly_id,
			exam_date = excluded.exam_date,
			height_cm = excluded.height_cm,
			weight_kg = excluded.weight_kg,
			bmi = excluded.bmi,
			bmi_category = excluded.bmi_category,
			systolic = excluded.systolic,
			diastolic = excluded.diastolic,
			bp_category = excluded.bp_category,
			bp_emergency = excluded.bp_emergency,
			fasting_glucose = excluded.fasting_glucose,
			fasting_glucose_category = excluded.fasting_glucose_category,
			random_glucose = excluded.random_glucose,
			random_glucose_category = excluded.random_glucose_category,
			postprandial_glucose = excluded.postprandial_glucose,
			postprandial_glucose_category = excluded.postprandial_glucose_category,
			total_cholesterol = excluded.total_cholesterol,
			total_cholesterol_category = excluded.total_cholesterol_category,
			uric_acid = excluded.uric_acid,
			synced_at = excluded.synced_at`,
			row.ID, row.ElderlyID, row.ExamDate,
			row.HeightCM, row.WeightKG, row.BMI, row.BMICategory,
			row.Systolic, row.Diastolic, row.BPCategory, row.BPEmergency,
			row.FastingGlucose, row.FastingGlucoseCategory,
			row.RandomGlucose, row.RandomGlucoseCategory,
			row.PostprandialGlucose, row.PostprandialGlucoseCategory,
			row.TotalCholesterol, row.TotalCholesterolCategory,
			row.UricAcid, row.CreatedAt, row.SyncedAt)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to upsert examination record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit upsert", err)
	}
	r.logger.Info("examination records upserted", zap.Int("count", len(records)))
	return nil
}

// Count returns the number of stored records.
func (r *ExaminationRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM examination_records`).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to count examination records", err)
	}
	return n, nil
}

// Clear removes all records.
func (r *ExaminationRepo) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM examination_records`); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear examination records", err)
	}
	r.logger.Warn("examination records cleared")
	return nil
}

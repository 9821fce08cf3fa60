package db

import (
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/models"
)

// ElderlyRepo provides CRUD operations for elderly patient records.
type ElderlyRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewElderlyRepo creates a new ElderlyRepo.
func NewElderlyRepo(db *sql.DB, logger *zap.Logger) *ElderlyRepo {
	return &ElderlyRepo{db: db, logger: logger.Named("elderly_repo")}
}

const elderlyColumns = `id, code, nik, family_card_number, name, birth_date, gender, address, created_at, synced_at`

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// validateElderly rejects malformed records before any write reaches the
// store.
func validateElderly(rec *models.ElderlyRecord) error {
	switch {
	case rec == nil:
		return apperrors.New(apperrors.ErrValidation, "elderly record is nil")
	case strings.TrimSpace(rec.Code) == "":
		return apperrors.New(apperrors.ErrValidation, "elderly code is empty")
	case len(rec.NIK) != 16 || !digitsOnly(rec.NIK):
		return apperrors.New(apperrors.ErrValidation, "NIK must be 16 digits")
	case len(rec.FamilyCardNumber) != 16 || !digitsOnly(rec.FamilyCardNumber):
		return apperrors.New(apperrors.ErrValidation, "family card number must be 16 digits")
	case strings.TrimSpace(rec.Name) == "":
		return apperrors.New(apperrors.ErrValidation, "name is empty")
	case rec.BirthDate.IsZero():
		return apperrors.New(apperrors.ErrValidation, "birth date is missing")
	case rec.BirthDate.After(time.Now()):
		return apperrors.New(apperrors.ErrValidation, "birth date is in the future")
	case !rec.Gender.Valid():
		return apperrors.New(apperrors.ErrValidation, "gender must be male or female")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create validates and persists a record, assigning a local id when the
// record does not carry one (provisional records arrive with a negative id
// already set). Returns the assigned id.
func (r *ElderlyRepo) Create(rec *models.ElderlyRecord) (int64, error) {
	if err := validateElderly(rec); err != nil {
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	row := elderlyToRow(rec)

	var err error
	if rec.ID == 0 {
		var res sql.Result
		res, err = r.db.Exec(`
		INSERT INTO elderly_records (code, nik, family_card_number, name, birth_date, gender, address, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.Code, row.NIK, row.FamilyCardNumber, row.Name, row.BirthDate,
			row.Gender, row.Address, row.CreatedAt, row.SyncedAt)
		if err == nil {
			rec.ID, err = res.LastInsertId()
		}
	} else {
		_, err = r.db.Exec(`
		INSERT INTO elderly_records (`+elderlyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.Code, row.NIK, row.FamilyCardNumber, row.Name, row.BirthDate,
			row.Gender, row.Address, row.CreatedAt, row.SyncedAt)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Wrap(apperrors.ErrDuplicate, "elderly record already exists", err)
		}
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to create elderly record", err)
	}

	r.logger.Info("elderly record created",
		zap.Int64("id", rec.ID),
		zap.String("code", rec.Code),
		zap.Bool("provisional", rec.SyncedAt == nil))
	return rec.ID, nil
}

func (r *ElderlyRepo) getOne(query string, arg interface{}) (*models.ElderlyRecord, error) {
	var row elderlyRow
	err := r.db.QueryRow(query, arg).Scan(
		&row.ID, &row.Code, &row.NIK, &row.FamilyCardNumber, &row.Name,
		&row.BirthDate, &row.Gender, &row.Address, &row.CreatedAt, &row.SyncedAt)
	if err == sql.ErrNoRows {
		// Absence is not an error on read paths.
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read elderly record", err)
	}
	return row.toDomain()
}

// GetByID retrieves a record by local id, or nil when not found.
func (r *ElderlyRepo) GetByID(id int64) (*models.ElderlyRecord, error) {
	return r.getOne(`SELECT `+elderlyColumns+` FROM elderly_records WHERE id = ?`, id)
}

// GetByCode retrieves a record by external code, or nil when not found.
func (r *ElderlyRepo) GetByCode(code string) (*models.ElderlyRecord, error) {
	return r.getOne(`SELECT `+elderlyColumns+` FROM elderly_records WHERE code = ?`, code)
}

// GetByNIK retrieves a record by national id number, or nil when not found.
func (r *ElderlyRepo) GetByNIK(nik string) (*models.ElderlyRecord, error) {
	return r.getOne(`SELECT `+elderlyColumns+` FROM elderly_records WHERE nik = ?`, nik)
}

// List returns all records ordered by creation time, newest first.
func (r *ElderlyRepo) List() ([]*models.ElderlyRecord, error) {
	rows, err := r.db.Query(`SELECT ` + elderlyColumns + ` FROM elderly_records ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list elderly records", err)
	}
	defer rows.Close()

	var records []*models.ElderlyRecord
	for rows.Next() {
		var row elderlyRow
		err := rows.Scan(
			&row.ID, &row.Code, &row.NIK, &row.FamilyCardNumber, &row.Name,
			&row.BirthDate, &row.Gender, &row.Address, &row.CreatedAt, &row.SyncedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan elderly record", err)
		}
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate elderly records", err)
	}
	return records, nil
}

// ElderlyUpdate carries the partial fields of an update; nil fields are
// left untouched.
type ElderlyUpdate struct {
	Name     *string
	Address  *string
	SyncedAt *time.Time
}

// Update merges the given fields into an existing record. Updating a
// missing id is a recorded no-op, not an error.
func (r *ElderlyRepo) Update(id int64, upd ElderlyUpdate) error {
	var sets []string
	var args []interface{}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Address != nil {
		sets = append(sets, "address = ?")
		args = append(args, *upd.Address)
	}
	if upd.SyncedAt != nil {
		sets = append(sets, "synced_at = ?")
		args = append(args, upd.SyncedAt.Unix())
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.db.Exec(`UPDATE elderly_records SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to update elderly record", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Debug("elderly update matched no rows", zap.Int64("id", id))
		return nil
	}
	r.logger.Info("elderly record updated", zap.Int64("id", id))
	return nil
}

// Delete removes a record. Deleting a nonexistent id is not an error.
func (r *ElderlyRepo) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM elderly_records WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete elderly record", err)
	}
	n, _ := res.RowsAffected()
	r.logger.Info("elderly record deleted", zap.Int64("id", id), zap.Int64("rows", n))
	return nil
}

// BulkUpsert reconciles a batch of records by external code inside a single
// transaction: existing rows are replaced with the incoming copy (including
// the server-assigned id), missing rows are created. A failure rolls back
// the whole batch.
func (r *ElderlyRepo) BulkUpsert(records []*models.ElderlyRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := validateElderly(rec); err != nil {
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
		row := elderlyToRow(rec)

		var existingID int64
		err := tx.QueryRow(`SELECT id FROM elderly_records WHERE code = ?`, row.Code).Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(`
			INSERT INTO elderly_records (`+elderlyColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				row.ID, row.Code, row.NIK, row.FamilyCardNumber, row.Name, row.BirthDate,
				row.Gender, row.Address, row.CreatedAt, row.SyncedAt)
		case err == nil:
			_, err = tx.Exec(`
			UPDATE elderly_records
			SET id = ?, nik = ?, family_card_number = ?, name = ?, birth_date = ?,
				gender = ?, address = ?, synced_at = ?
			WHERE code = ?`,
				row.ID, row.NIK, row.FamilyCardNumber, row.Name, row.BirthDate,
				row.Gender, row.Address, row.SyncedAt, row.Code)
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to upsert elderly record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit upsert", err)
	}
	r.logger.Info("elderly records upserted", zap.Int("count", len(records)))
	return nil
}

// Count returns the number of stored records.
func (r *ElderlyRepo) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM elderly_records`).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to count elderly records", err)
	}
	return n, nil
}

// Clear removes all records.
func (r *ElderlyRepo) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM elderly_records`); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear elderly records", err)
	}
	r.logger.Warn("elderly records cleared")
	return nil
}

package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setRefreshTokenIDSQL = `UPDATE "users" AS "usr"
SET
	"refresh_token_id" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var setOTPSQL = `UPDATE "users" AS "usr"
SET
	"otp_code" = ?,
	"otp_expires_at" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var markVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"is_verified" = TRUE,
	"otp_code" = '',
	"otp_expires_at" = NULL,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var setPasswordHashSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var resetPasswordHashSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"otp_code" = '',
	"otp_expires_at" = NULL,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the account repository. The credential mutations run as single
// UPDATE statements so the rotation invariant (at most one live refresh
// identifier per account) holds under concurrent logins and refreshes.
type Users interface {
	repository.Repository[*User]
	CredentialStore

	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	CreateAccountTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ CredentialStore              = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// CreateAccount satisfies CredentialStore without the variadic criteria.
func (a *users) CreateAccount(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateAccountTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	return a.CreateTx(ctx, tx, record)
}

// SetRefreshTokenID atomically replaces the account's rotation identifier.
// An empty identifier revokes any outstanding refresh token (logout).
func (a *users) SetRefreshTokenID(ctx context.Context, id uuid.UUID, refreshTokenID string) (*User, error) {
	return a.rawUpdateOne(ctx, setRefreshTokenIDSQL, refreshTokenID, time.Now(), id.String())
}

// SetOTP installs a fresh one-time code, superseding any previous one.
func (a *users) SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*User, error) {
	return a.rawUpdateOne(ctx, setOTPSQL, code, expiresAt, time.Now(), id.String())
}

// MarkVerified flips the verification flag and clears the pending code in
// the same statement so the two fields can never disagree.
func (a *users) MarkVerified(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.rawUpdateOne(ctx, markVerifiedSQL, time.Now(), id.String())
}

func (a *users) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (*User, error) {
	return a.rawUpdateOne(ctx, setPasswordHashSQL, hash, time.Now(), id.String())
}

// ResetPasswordHash replaces the hash and consumes the one-time code that
// authorized the reset.
func (a *users) ResetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (*User, error) {
	return a.rawUpdateOne(ctx, resetPasswordHashSQL, hash, time.Now(), id.String())
}

func (a *users) rawUpdateOne(ctx context.Context, sql string, args ...any) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, sql, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

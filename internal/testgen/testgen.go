// Package testgen builds fixtures for tests: a migrated database plus books,
// members, loans, users and small image files.
package testgen

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/shishobooks/shelf/pkg/migrations"
	"github.com/shishobooks/shelf/pkg/models"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

var seq atomic.Int64

// BaseTime is a fixed instant used as "now" by tests that need a stable clock.
var BaseTime = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

// Config returns a test config whose database lives in a temp file, so every
// connection sees the same data.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "shelf.db")
	cfg.CacheDir = t.TempDir()
	return cfg
}

// NewDB opens a fresh database with every migration applied.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()
	return NewDBWithConfig(t, Config(t))
}

func NewDBWithConfig(t *testing.T, cfg *config.Config) *bun.DB {
	t.Helper()
	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if _, err := migrations.BringUpToDate(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// BookOptions configures CreateBook. Zero values get generated defaults.
type BookOptions struct {
	Title       string
	Author      string
	ISBN        *string
	Description *string
	Unavailable bool
}

func CreateBook(t *testing.T, db bun.IDB, opts BookOptions) *models.Book {
	t.Helper()
	n := seq.Add(1)
	if opts.Title == "" {
		opts.Title = fmt.Sprintf("Book %d", n)
	}
	if opts.Author == "" {
		opts.Author = fmt.Sprintf("Author %d", n)
	}
	book := &models.Book{
		CreatedAt:   BaseTime,
		UpdatedAt:   BaseTime,
		Title:       opts.Title,
		Author:      opts.Author,
		ISBN:        opts.ISBN,
		Description: opts.Description,
		Available:   !opts.Unavailable,
	}
	if _, err := db.NewInsert().Model(book).Exec(context.Background()); err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	return book
}

// MemberOptions configures CreateMember. Zero values get generated defaults.
type MemberOptions struct {
	Name  string
	Email string
	Phone *string
}

func CreateMember(t *testing.T, db bun.IDB, opts MemberOptions) *models.Member {
	t.Helper()
	n := seq.Add(1)
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("Member %d", n)
	}
	if opts.Email == "" {
		opts.Email = fmt.Sprintf("member%d@example.com", n)
	}
	member := &models.Member{
		CreatedAt: BaseTime,
		UpdatedAt: BaseTime,
		Name:      opts.Name,
		Email:     opts.Email,
		Phone:     opts.Phone,
	}
	if _, err := db.NewInsert().Model(member).Exec(context.Background()); err != nil {
		t.Fatalf("failed to create member: %v", err)
	}
	return member
}

func CreateCategory(t *testing.T, db bun.IDB, name string, books ...*models.Book) *models.Category {
	t.Helper()
	ctx := context.Background()
	category := &models.Category{CreatedAt: BaseTime, UpdatedAt: BaseTime, Name: name}
	if _, err := db.NewInsert().Model(category).Exec(ctx); err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	for _, book := range books {
		bc := &models.BookCategory{BookID: book.ID, CategoryID: category.ID}
		if _, err := db.NewInsert().Model(bc).Exec(ctx); err != nil {
			t.Fatalf("failed to link category: %v", err)
		}
	}
	return category
}

// CreateOpenLoan inserts a loan directly, flipping the book to unavailable.
// It bypasses the loan service so tests can set up arbitrary histories.
func CreateOpenLoan(t *testing.T, db bun.IDB, book *models.Book, member *models.Member, borrowedAt time.Time) *models.Loan {
	t.Helper()
	ctx := context.Background()
	loan := &models.Loan{
		CreatedAt:  borrowedAt,
		UpdatedAt:  borrowedAt,
		BookID:     book.ID,
		MemberID:   member.ID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.AddDate(0, 0, 14),
		Status:     models.LoanStatusActive,
	}
	if _, err := db.NewInsert().Model(loan).Exec(ctx); err != nil {
		t.Fatalf("failed to create loan: %v", err)
	}
	if _, err := db.NewUpdate().Model((*models.Book)(nil)).Set("available = ?", false).Where("id = ?", book.ID).Exec(ctx); err != nil {
		t.Fatalf("failed to mark book unavailable: %v", err)
	}
	book.Available = false
	return loan
}

// CreateReturnedLoan inserts a closed loan without touching availability.
func CreateReturnedLoan(t *testing.T, db bun.IDB, book *models.Book, member *models.Member, borrowedAt, returnedAt time.Time) *models.Loan {
	t.Helper()
	loan := &models.Loan{
		CreatedAt:  borrowedAt,
		UpdatedAt:  returnedAt,
		BookID:     book.ID,
		MemberID:   member.ID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.AddDate(0, 0, 14),
		ReturnDate: &returnedAt,
		Status:     models.LoanStatusReturned,
	}
	if _, err := db.NewInsert().Model(loan).Exec(context.Background()); err != nil {
		t.Fatalf("failed to create loan: %v", err)
	}
	return loan
}

// UserOptions configures CreateUser.
type UserOptions struct {
	Username           string
	Password           string
	Role               string
	Inactive           bool
	MustChangePassword bool
}

// CreateUser inserts a user with the given role and returns it with the role
// and its permissions loaded.
func CreateUser(t *testing.T, db bun.IDB, opts UserOptions) *models.User {
	t.Helper()
	ctx := context.Background()
	n := seq.Add(1)
	if opts.Username == "" {
		opts.Username = fmt.Sprintf("user%d", n)
	}
	if opts.Password == "" {
		opts.Password = "password123"
	}
	if opts.Role == "" {
		opts.Role = models.RoleAdmin
	}

	role := &models.Role{}
	if err := db.NewSelect().Model(role).Where("name = ?", opts.Role).Scan(ctx); err != nil {
		t.Fatalf("failed to find role %s: %v", opts.Role, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		CreatedAt:          BaseTime,
		UpdatedAt:          BaseTime,
		Username:           opts.Username,
		PasswordHash:       string(hash),
		RoleID:             role.ID,
		IsActive:           !opts.Inactive,
		MustChangePassword: opts.MustChangePassword,
	}
	if _, err := db.NewInsert().Model(user).Exec(ctx); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	err = db.NewSelect().
		Model(user).
		Relation("Role").
		Relation("Role.Permissions").
		WherePK().
		Scan(ctx)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return user
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/books"
	"github.com/shishobooks/shelf/pkg/categories"
	"github.com/shishobooks/shelf/pkg/config"
	"github.com/shishobooks/shelf/pkg/database"
	"github.com/shishobooks/shelf/pkg/loans"
	"github.com/shishobooks/shelf/pkg/members"
	"github.com/shishobooks/shelf/pkg/migrations"
	"github.com/shishobooks/shelf/pkg/models"
)

var (
	titles     = []string{"The Left Hand of Darkness", "Middlemarch", "Kindred", "The Name of the Rose", "Piranesi", "Beloved", "Solaris", "Pale Fire", "The Dispossessed", "Wolf Hall"}
	authors    = []string{"Ursula K. Le Guin", "George Eliot", "Octavia E. Butler", "Umberto Eco", "Susanna Clarke", "Toni Morrison", "Stanisław Lem", "Vladimir Nabokov", "Hilary Mantel"}
	categoryNS = []string{"Fiction", "Science Fiction", "Classics", "Historical", "Mystery"}
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Ken", "Radia", "Donald"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Thompson", "Perlman", "Knuth"}
)

func main() {
	ctx := context.Background()
	log := logger.New()

	var opts struct {
		Books   int   `short:"b" long:"books" default:"25" description:"Number of books to create"`
		Members int   `short:"m" long:"members" default:"10" description:"Number of members to create"`
		Loans   int   `short:"l" long:"loans" default:"8" description:"Number of open loans to create"`
		Overdue int   `short:"o" long:"overdue" default:"3" description:"How many of the open loans are backdated past their due date"`
		Seed    int64 `short:"s" long:"seed" default:"1" description:"Random seed"`
	}

	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		log.Err(err).Fatal("flags parse error")
	}
	if opts.Loans > opts.Books || opts.Overdue > opts.Loans {
		fmt.Println("--loans must not exceed --books and --overdue must not exceed --loans")
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}
	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		log.Err(err).Fatal("migrations error")
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	bookService := books.NewService(db)
	memberService := members.NewService(db)
	categoryService := categories.NewService(db)
	loanService := loans.NewService(db)

	categoryIDs := []int{}
	for _, name := range categoryNS {
		category, err := categoryService.FindOrCreateCategory(ctx, name)
		if err != nil {
			log.Err(err).Fatal("category error")
		}
		categoryIDs = append(categoryIDs, category.ID)
	}

	createdBooks := make([]*models.Book, 0, opts.Books)
	for i := 0; i < opts.Books; i++ {
		book := &models.Book{
			Title:  fmt.Sprintf("%s (vol. %d)", titles[i%len(titles)], i/len(titles)+1),
			Author: authors[rng.Intn(len(authors))],
		}
		ids := []int{categoryIDs[rng.Intn(len(categoryIDs))]}
		if err := bookService.CreateBook(ctx, book, ids); err != nil {
			log.Err(err).Fatal("book error")
		}
		createdBooks = append(createdBooks, book)
	}

	createdMembers := make([]*models.Member, 0, opts.Members)
	for i := 0; i < opts.Members; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		member := &models.Member{
			Name:  first + " " + last,
			Email: fmt.Sprintf("seed%d@example.com", i+1),
		}
		if err := memberService.CreateMember(ctx, member); err != nil {
			log.Err(err).Fatal("member error")
		}
		createdMembers = append(createdMembers, member)
	}

	now := loanService.Now()
	for i := 0; i < opts.Loans && len(createdMembers) > 0; i++ {
		borrowedAt := now.AddDate(0, 0, -rng.Intn(loans.LoanPeriodDays))
		if i < opts.Overdue {
			borrowedAt = now.AddDate(0, 0, -(loans.LoanPeriodDays + 1 + rng.Intn(10)))
		}
		_, err := loanService.Borrow(ctx, loans.BorrowOptions{
			BookID:   createdBooks[i].ID,
			MemberID: createdMembers[rng.Intn(len(createdMembers))].ID,
			Now:      borrowedAt,
		})
		if err != nil {
			log.Err(err).Fatal("loan error")
		}
	}

	flipped, err := loanService.SweepOverdue(ctx, loans.SweepOptions{Now: now, BatchSize: cfg.SweepBatchSize})
	if err != nil {
		log.Err(err).Fatal("sweep error")
	}

	log.Info("seed complete", logger.Data{
		"books":   len(createdBooks),
		"members": len(createdMembers),
		"loans":   opts.Loans,
		"overdue": flipped,
	})
}

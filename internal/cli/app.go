// Package cli implements bookctl, a non-interactive command line over the
// book service. Each invocation runs one subcommand and prints one
// tab-separated line per book.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

// ErrUsage is returned for unknown subcommands and malformed arguments.
var ErrUsage = errors.New("usage error")

// BookStore is the part of services.BookService the CLI drives.
type BookStore interface {
	Create(ctx context.Context, caller *models.Caller, in models.BookInput) (*models.Book, error)
	Get(ctx context.Context, id string) (*models.Book, error)
	List(ctx context.Context, f models.Filter) ([]*models.Book, error)
	Update(ctx context.Context, id string, f models.BookFields) (*models.Book, error)
	Delete(ctx context.Context, id string) error
	AwaitIndexed(ctx context.Context, b *models.Book) error
}

type App struct {
	books         BookStore
	secretKey     []byte
	tokenValidity time.Duration
	out           io.Writer
	errOut        io.Writer
	readFile      func(name string) ([]byte, error)
}

func NewApp(books BookStore, secretKey string, tokenValidity time.Duration, out, errOut io.Writer) *App {
	return &App{
		books:         books,
		secretKey:     []byte(secretKey),
		tokenValidity: tokenValidity,
		out:           out,
		errOut:        errOut,
		readFile:      os.ReadFile,
	}
}

const usage = `usage: bookctl [config flags] <command> [flags]

commands:
  create  -title T [-author A] [-published YYYY-MM-DD] [-description D] [-cover PATH] [-token JWT] [-wait]
  show    -id ID
  list    [-filter all|created_by:ID] [-mine -token JWT]
  edit    -id ID [-title T] [-author A] [-published YYYY-MM-DD|""] [-description D] [-cover PATH | -remove-cover] [-wait]
  delete  -id ID
  token   -user ID [-name N]
`

// Run executes the subcommand named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.errOut, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "create":
		return a.create(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "token":
		return a.token(rest)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.errOut, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) printBook(b *models.Book) {
	fmt.Fprintln(a.out, FormatBook(b))
}

// FormatBook renders id, title, author, published date, creator and cover URL
// separated by tabs. Absent values print as "-", an absent author as
// "unknown".
func FormatBook(b *models.Book) string {
	author := b.Author
	if strings.TrimSpace(author) == "" {
		author = "unknown"
	}

	published := "-"
	if b.PublishedOn != nil {
		published = b.PublishedOn.Format(dateLayout)
	}

	creator := "-"
	if b.CreatorID != "" {
		creator = b.CreatorID
	}

	cover := "-"
	if b.Cover != nil {
		cover = b.Cover.URL
	}

	return strings.Join([]string{b.ID, b.Title, author, published, creator, cover}, "\t")
}

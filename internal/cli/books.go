package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bookshelf/internal/server/auth"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

func (a *App) caller(token string) (*models.Caller, error) {
	if token == "" {
		return nil, nil
	}
	c, err := auth.ParseCaller(token, a.secretKey)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	return c, nil
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	title := fs.String("title", "", "book title")
	author := fs.String("author", "", "author")
	published := fs.String("published", "", "publication date, YYYY-MM-DD")
	description := fs.String("description", "", "description")
	cover := fs.String("cover", "", "path of the cover image")
	token := fs.String("token", "", "identity token")
	wait := fs.Bool("wait", false, "wait until the book is searchable")
	if err := parse(fs, args); err != nil {
		return err
	}

	in := models.BookInput{Title: *title, Author: *author, Description: *description}

	date, err := parseDate(*published)
	if err != nil {
		return err
	}
	if !date.IsZero() {
		in.PublishedOn = &date
	}

	if *cover != "" {
		if in.Cover, err = a.readCover(*cover); err != nil {
			return err
		}
	}

	caller, err := a.caller(*token)
	if err != nil {
		return err
	}

	b, err := a.books.Create(ctx, caller, in)
	if err != nil {
		return err
	}

	if *wait {
		if err := a.books.AwaitIndexed(ctx, b); err != nil {
			return fmt.Errorf("book %s created but not yet indexed: %w", b.ID, err)
		}
	}

	a.printBook(b)
	return nil
}

func (a *App) show(ctx context.Context, args []string) error {
	fs := newFlagSet("show")
	id := fs.String("id", "", "book id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	b, err := a.books.Get(ctx, *id)
	if err != nil {
		return err
	}
	a.printBook(b)
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	filter := fs.String("filter", models.FilterAll, "all or created_by:ID")
	mine := fs.Bool("mine", false, "only books created by the token's user")
	token := fs.String("token", "", "identity token")
	if err := parse(fs, args); err != nil {
		return err
	}

	f, err := models.ParseFilter(*filter)
	if err != nil {
		return err
	}

	if *mine {
		if *token == "" {
			return fmt.Errorf("%w: list: -mine needs -token", ErrUsage)
		}
		caller, err := a.caller(*token)
		if err != nil {
			return err
		}
		f.CreatorID = caller.ID
	}

	list, err := a.books.List(ctx, f)
	if err != nil {
		return err
	}
	for _, b := range list {
		a.printBook(b)
	}
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	fs := newFlagSet("edit")
	id := fs.String("id", "", "book id")
	title := fs.String("title", "", "book title")
	author := fs.String("author", "", "author")
	published := fs.String("published", "", "publication date, YYYY-MM-DD; empty clears it")
	description := fs.String("description", "", "description")
	cover := fs.String("cover", "", "path of the new cover image")
	removeCover := fs.Bool("remove-cover", false, "remove the cover image")
	wait := fs.Bool("wait", false, "wait until the change is searchable")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	set := setFlags(fs)
	f := models.BookFields{RemoveCover: *removeCover}
	if set["title"] {
		f.Title = title
	}
	if set["author"] {
		f.Author = author
	}
	if set["description"] {
		f.Description = description
	}
	if set["published"] {
		date, err := parseDate(*published)
		if err != nil {
			return err
		}
		f.PublishedOn = &date
	}
	if set["cover"] {
		var err error
		if f.Cover, err = a.readCover(*cover); err != nil {
			return err
		}
	}

	b, err := a.books.Update(ctx, *id, f)
	if err != nil {
		return err
	}

	if *wait {
		if err := a.books.AwaitIndexed(ctx, b); err != nil {
			return fmt.Errorf("book %s updated but not yet indexed: %w", b.ID, err)
		}
	}

	a.printBook(b)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	id := fs.String("id", "", "book id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}

	if err := a.books.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", *id)
	return nil
}

func (a *App) token(args []string) error {
	fs := newFlagSet("token")
	user := fs.String("user", "", "user id")
	name := fs.String("name", "", "display name")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("%w: token: -user is required", ErrUsage)
	}

	t, err := auth.GenerateToken(models.Caller{ID: *user, Name: *name}, a.secretKey, a.tokenValidity)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, t)
	return nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nhle/contacts/internal/app"
	"github.com/nhle/contacts/internal/cache"
	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/normalize"
	appsync "github.com/nhle/contacts/internal/sync"
	"github.com/nhle/contacts/internal/ui"
)

// run dispatches one command line.
func run(ctx context.Context, a *app.App, cfg *model.AppConfig, w io.Writer, name string, args []string) error {
	e := a.Engine()

	switch name {
	case "login":
		return login(ctx, a, args)

	case "logout":
		return a.Logout()

	case "folders":
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		refresh := fs.Bool("refresh", false, "refetch the folder tree")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *refresh || len(e.State().Folders) == 0 {
			if _, err := a.Do(ctx, e.FetchFolders()); err != nil {
				return err
			}
		}
		st := e.State()
		fmt.Fprint(w, ui.FolderTree(st.Folders, st.Contacts))
		return nil

	case "list":
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		refresh := fs.Bool("refresh", false, "refetch the folder")
		if err := fs.Parse(args); err != nil {
			return err
		}
		folder := model.FolderContacts
		if fs.NArg() > 0 {
			folder = fs.Arg(0)
		}
		if _, err := a.Do(ctx, e.FetchContacts(folder, *refresh)); err != nil {
			return err
		}
		fmt.Fprintln(w, ui.ContactTable(e.State().ContactsIn(folder)))
		return nil

	case "show":
		if len(args) != 1 {
			return fmt.Errorf("show takes one contact id")
		}
		c, _, ok := e.State().FindContact(args[0])
		if !ok {
			return fmt.Errorf("contact %s is not cached, list its folder first", args[0])
		}
		fmt.Fprintln(w, ui.ContactCard(c))
		return nil

	case "search":
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		offset := fs.Int("offset", 0, "skip the first results")
		if err := fs.Parse(args); err != nil {
			return err
		}
		query := strings.Join(fs.Args(), " ")
		msg, err := a.Do(ctx, e.Search(query, *offset))
		if err != nil {
			return err
		}
		res := msg.(appsync.SearchResultMsg)
		fmt.Fprintln(w, ui.ContactTable(res.Contacts))
		if res.More {
			fmt.Fprintf(w, "more results: --offset %d\n", *offset+len(res.Contacts))
		}
		return nil

	case "add":
		return addContact(ctx, a, w, args)

	case "edit":
		return editContact(ctx, a, args)

	case "move":
		if len(args) < 2 {
			return fmt.Errorf("move takes a folder and contact ids")
		}
		_, err := a.Do(ctx, e.MoveContacts(args[1:], args[0]))
		return err

	case "trash":
		_, err := a.Do(ctx, e.TrashContacts(args))
		return err

	case "delete":
		_, err := a.Do(ctx, e.DeleteContacts(args))
		return err

	case "tag", "untag":
		if len(args) < 2 {
			return fmt.Errorf("%s takes a tag and contact ids", name)
		}
		cmd := e.TagContacts(args[1:], args[0])
		if name == "untag" {
			cmd = e.UntagContacts(args[1:], args[0])
		}
		_, err := a.Do(ctx, cmd)
		return err

	case "mkdir":
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		parent := fs.String("parent", model.FolderRoot, "parent folder id")
		color := fs.Int("color", 0, "folder color (0-9)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("mkdir takes one name")
		}
		_, err := a.Do(ctx, e.CreateFolder(fs.Arg(0), *parent, *color))
		return err

	case "rename":
		if len(args) != 2 {
			return fmt.Errorf("rename takes a folder id and a name")
		}
		_, err := a.Do(ctx, e.RenameFolder(args[0], args[1]))
		return err

	case "mvdir":
		if len(args) != 2 {
			return fmt.Errorf("mvdir takes a folder id and a parent id")
		}
		_, err := a.Do(ctx, e.MoveFolder(args[0], args[1]))
		return err

	case "rmdir":
		if len(args) != 1 {
			return fmt.Errorf("rmdir takes one folder id")
		}
		_, err := a.Do(ctx, e.DeleteFolder(args[0]))
		return err

	case "empty":
		if len(args) != 1 {
			return fmt.Errorf("empty takes one folder id")
		}
		_, err := a.Do(ctx, e.EmptyFolder(args[0]))
		return err

	case "unshare":
		if len(args) != 2 {
			return fmt.Errorf("unshare takes a folder id and a grantee id")
		}
		_, err := a.Do(ctx, e.RevokeGrant(args[0], args[1]))
		return err

	case "mount":
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		parent := fs.String("parent", model.FolderRoot, "parent folder id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 3 {
			return fmt.Errorf("mount takes an owner id, a remote folder id and a name")
		}
		msg, err := a.Do(ctx, e.CreateMountpoints([]appsync.Mountpoint{{
			Parent:   *parent,
			OwnerID:  fs.Arg(0),
			RemoteID: fs.Arg(1),
			Name:     fs.Arg(2),
		}}))
		if err != nil {
			return err
		}
		fmt.Fprint(w, ui.FolderTree(msg.(appsync.MountpointsMsg).Folders, nil))
		return nil

	case "export":
		folder := ""
		if len(args) > 0 {
			folder = args[0]
		}
		msg, err := a.Do(ctx, e.Export(folder))
		if err != nil {
			return err
		}
		fmt.Fprint(w, msg.(appsync.ExportResultMsg).CSV)
		return nil

	case "watch":
		fmt.Fprintln(w, ui.RenderHeader("Contacts", cfg.Server.Username, 72))
		if err := a.Refresh(ctx, false); err != nil {
			return err
		}
		return a.Watch(ctx, func(s cache.State) {
			status := a.Notifier().Statuses()[0]
			fmt.Fprintf(w, "%s  %d folders, %d contacts\n",
				ui.SyncLine(status.State.String(), status.Session, s.LastSeq),
				len(s.Folders), countContacts(s))
		})
	}

	return fmt.Errorf("unknown command %q", name)
}

func login(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	password := fs.String("password", os.Getenv("CONTACTS_PASSWORD"), "account password, read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	return a.Login(ctx, *password)
}

func addContact(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
	folder := fs.String("folder", model.FolderContacts, "destination folder id")
	from := fs.String("from", "", `recipient to save, e.g. "Ada Lovelace <ada@example.com>"`)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	company := fs.String("company", "", "company")
	emails := fs.StringSlice("email", nil, "email address (repeatable)")
	mobiles := fs.StringSlice("mobile", nil, "mobile phone (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := model.Contact{Parent: *folder, Tags: []string{}}
	if *from != "" {
		draft, err := normalize.DraftFromRecipient(*from, *folder)
		if err != nil {
			return err
		}
		c = draft
	}
	if *first != "" {
		c.FirstName = *first
	}
	if *last != "" {
		c.LastName = *last
	}
	c.Company = *company
	for _, m := range *emails {
		c.AddEmail(m)
	}
	for _, p := range *mobiles {
		c.AddPhone(model.TypeMobile, p)
	}

	placeholder, cmd := a.Engine().CreateContact(c)
	if _, err := a.Do(ctx, cmd); err != nil {
		return err
	}
	for _, got := range a.Engine().State().ContactsIn(placeholder.Parent) {
		if got.LocalID == placeholder.LocalID && got.ID != "" {
			fmt.Fprintln(w, ui.ContactCard(got))
			return nil
		}
	}
	return nil
}

func editContact(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("edit takes a contact id and field=value pairs")
	}
	c, _, ok := a.Engine().State().FindContact(args[0])
	if !ok {
		return fmt.Errorf("contact %s is not cached, list its folder first", args[0])
	}
	next := c.Clone()
	for _, kv := range args[1:] {
		field, value, found := strings.Cut(kv, "=")
		if !found {
			return fmt.Errorf("expected field=value, got %q", kv)
		}
		switch {
		case model.IsScalarField(field):
			next.SetScalar(model.ScalarField(field), value)
		case field == "email":
			next.AddEmail(value)
		default:
			return fmt.Errorf("unknown field %q", field)
		}
	}
	_, err := a.Do(ctx, a.Engine().ModifyContact(next))
	return err
}

func countContacts(s cache.State) int {
	n := 0
	for _, bucket := range s.Contacts {
		n += len(bucket)
	}
	return n
}

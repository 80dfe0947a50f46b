package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/contacts/internal/app"
	"github.com/nhle/contacts/internal/logging"
	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/theme"
)

const usage = `usage: contacts [global flags] <command> [args]

commands:
  login                     authenticate and store the session token
  logout                    forget the token and the local cache
  folders [--refresh]       list address books
  list [folder] [--refresh] list the contacts of a folder (default 7)
  show <id>                 show one contact
  search <query>            search contacts on the server
  add [flags]               create a contact
  edit <id> field=value...  change scalar fields or add emails
  move <folder> <id>...     move contacts
  trash <id>...             move contacts to the trash
  delete <id>...            delete contacts permanently
  tag|untag <tag> <id>...   tag or untag contacts
  mkdir <name> [flags]      create an address book
  rename <id> <name>        rename an address book
  mvdir <id> <parent>       move an address book
  rmdir <id>                delete an address book
  empty <id>                empty an address book or the trash
  unshare <id> <grantee>    revoke a grant
  mount <owner> <rid> <name> mount a shared address book
  export [folder]           print contacts as CSV
  watch                     follow server changes

global flags:
`

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// Environment overrides may live in a .env file next to the binary.
	_ = godotenv.Load()

	global := pflag.NewFlagSet("contacts", pflag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.String("config", model.DefaultConfigPath(), "path to the config file")
	global.String("server", "", "server base URL (server.base_url)")
	global.String("user", "", "account name (server.username)")
	global.String("log-level", "", "debug, info, warn or error (log.level)")
	global.String("db", "", "path of the local cache (cache.db_path)")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}

	if err := global.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	v := model.NewViper()
	for key, flag := range map[string]string{
		"server.base_url": "server",
		"server.username": "user",
		"log.level":       "log-level",
		"cache.db_path":   "db",
	} {
		if err := v.BindPFlag(key, global.Lookup(flag)); err != nil {
			return fail(err)
		}
	}

	cfg, err := model.LoadConfigWith(v, *configPath)
	if err != nil {
		return fail(err)
	}

	logger := logging.New(cfg.Log.Level, nil)
	defer logging.Sync(logger)

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if err := run(ctx, a, cfg, os.Stdout, args[0], args[1:]); err != nil {
		logger.Debug("command failed", zap.String("command", args[0]), zap.Error(err))
		if errors.Is(err, app.ErrNotLoggedIn) {
			err = fmt.Errorf("%w: run `contacts login` first", err)
		}
		return fail(err)
	}
	return 0
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("error:"), err)
	return 1
}

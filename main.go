package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/activitypub"
	"github.com/deemkeen/burrow/db"
	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
	"github.com/deemkeen/burrow/web"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:     util.Name,
		Short:   "ActivityPub federation for communities, posts and comments",
		Version: util.GetVersion(),
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		fetchCmd(),
		userCmd(),
		communityCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// instance holds what every command needs.
type instance struct {
	conf     *util.AppConfig
	settings *util.Settings
	store    *db.DB
}

func openInstance() (*instance, error) {
	conf, err := util.ReadConfFrom(configFile)
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(conf.Conf.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, keeping %s", conf.Conf.LogLevel, log.GetLevel())
	}
	settings, err := conf.Settings()
	if err != nil {
		return nil, err
	}
	store, err := db.Open(util.ResolveFilePath(conf.Conf.DatabasePath))
	if err != nil {
		return nil, err
	}
	return &instance{conf: conf, settings: settings, store: store}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the delivery worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := openInstance()
			if err != nil {
				return err
			}
			defer inst.store.Close()

			log.Debugf("Configuration: %s", util.PrettyPrint(inst.conf))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			transport := activitypub.NewHTTPTransport(inst.settings)
			fed := activitypub.New(inst.settings, inst.store, activitypub.NewQueueTransport(transport, inst.store))

			if inst.conf.Conf.WithAp {
				worker := activitypub.NewDeliveryWorker(transport, inst.store, inst.store)
				go worker.Run(ctx)
			}

			srv := web.Router(inst.conf, fed, inst.store)
			errc := make(chan error, 1)
			go func() {
				log.Infof("Starting %s HTTP server on %s", util.GetNameAndVersion(), srv.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("Stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the store runs the migrations
			inst, err := openInstance()
			if err != nil {
				return err
			}
			log.Info("Database migrations complete")
			return inst.store.Close()
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [url]",
		Short: "Resolve a remote object and store it locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := openInstance()
			if err != nil {
				return err
			}
			defer inst.store.Close()

			fed := activitypub.New(inst.settings, inst.store, activitypub.NewHTTPTransport(inst.settings))
			obj, err := fed.ResolveObject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(util.PrettyPrint(obj))
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local users",
	}
	var (
		displayName string
		admin       bool
	)
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a local user with a fresh key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := openInstance()
			if err != nil {
				return err
			}
			defer inst.store.Close()

			keys, err := util.GeneratePemKeypair()
			if err != nil {
				return err
			}
			fed := activitypub.New(inst.settings, inst.store, nil)
			actorID := fed.PersonURL(args[0])
			person, err := inst.store.UpsertPerson(cmd.Context(), &domain.PersonForm{
				Name:           args[0],
				DisplayName:    displayName,
				ActorID:        actorID,
				InboxURL:       activitypub.InboxURL(actorID),
				SharedInboxURL: fed.SharedInboxURL(),
				PublicKey:      keys.Public,
				PrivateKey:     keys.Private,
				Admin:          admin,
				Local:          true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", person.ActorID)
			return nil
		},
	}
	create.Flags().StringVar(&displayName, "display-name", "", "display name")
	create.Flags().BoolVar(&admin, "admin", false, "make the user an instance admin")
	cmd.AddCommand(create)
	return cmd
}

func communityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "community",
		Short: "Manage local communities",
	}
	var (
		title       string
		description string
		creator     string
		nsfw        bool
	)
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a local community moderated by its creator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := openInstance()
			if err != nil {
				return err
			}
			defer inst.store.Close()

			ctx := cmd.Context()
			fed := activitypub.New(inst.settings, inst.store, nil)
			owner, err := inst.store.ReadPersonByActorID(ctx, fed.PersonURL(creator))
			if err != nil {
				return fmt.Errorf("creator %s: %w", creator, err)
			}
			if !owner.Local {
				return fmt.Errorf("creator %s is not a local user", creator)
			}
			keys, err := util.GeneratePemKeypair()
			if err != nil {
				return err
			}
			name := args[0]
			if title == "" {
				title = name
			}
			actorID := fed.CommunityURL(name)
			community, err := inst.store.UpsertCommunity(ctx, &domain.CommunityForm{
				Name:           name,
				Title:          title,
				Description:    description,
				Nsfw:           nsfw,
				ActorID:        actorID,
				InboxURL:       activitypub.InboxURL(actorID),
				SharedInboxURL: fed.SharedInboxURL(),
				FollowersURL:   fed.FollowersURL(name),
				PublicKey:      keys.Public,
				PrivateKey:     keys.Private,
				CreatorActorID: owner.ActorID,
				Local:          true,
			})
			if err != nil {
				return err
			}
			if err := inst.store.AddModerator(ctx, community.Id, owner.ActorID); err != nil {
				return err
			}
			fmt.Printf("Created %s\n", community.ActorID)
			return nil
		},
	}
	create.Flags().StringVar(&title, "title", "", "display title (defaults to the name)")
	create.Flags().StringVar(&description, "description", "", "markdown description")
	create.Flags().StringVar(&creator, "creator", "", "name of the local user creating the community")
	create.Flags().BoolVar(&nsfw, "nsfw", false, "mark the community as nsfw")
	_ = create.MarkFlagRequired("creator")
	cmd.AddCommand(create, followCmd(false), followCmd(true))
	return cmd
}

// followCmd queues a Follow (or its Undo) of a remote community for the
// delivery worker of a running server.
func followCmd(undo bool) *cobra.Command {
	use, short := "follow [community-url]", "Follow a remote community as a local user"
	if undo {
		use, short = "unfollow [community-url]", "Stop following a remote community"
	}
	var user string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := openInstance()
			if err != nil {
				return err
			}
			defer inst.store.Close()

			ctx := cmd.Context()
			transport := activitypub.NewHTTPTransport(inst.settings)
			fed := activitypub.New(inst.settings, inst.store, activitypub.NewQueueTransport(transport, inst.store))
			person, err := inst.store.ReadPersonByActorID(ctx, fed.PersonURL(user))
			if err != nil {
				return fmt.Errorf("user %s: %w", user, err)
			}
			obj, err := fed.ResolveObject(ctx, args[0])
			if err != nil {
				return err
			}
			community, ok := obj.(*domain.Community)
			if !ok {
				return fmt.Errorf("%s is not a community", args[0])
			}
			if undo {
				err = fed.SendUndoFollowCommunity(ctx, person, community)
			} else {
				err = fed.SendFollowCommunity(ctx, person, community)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Queued for %s\n", community.ActorID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "as", "", "name of the local user")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facewatch/internal/storage/minio"
)

var backupUpload bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the face gallery and settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context(), backupUpload)
		if err != nil {
			return err
		}
		if backupUpload && !c.Backups.HasOffsite() {
			return fmt.Errorf("--upload needs MINIO_ENDPOINT and credentials")
		}

		total, err := c.Backups.EstimateSize()
		if err != nil {
			return err
		}
		bar := progressbar.DefaultBytes(total, "archiving")
		c.Backups.SetProgress(bar)

		archive, err := c.Manager.Backup(cmd.Context())
		bar.Finish()
		if err != nil {
			return err
		}
		fmt.Printf("\nBackup written to %s\n", archive)
		return nil
	},
}

var restoreRemote bool

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Restore the gallery and settings from an archive",
	Long: "Restore the gallery and settings from an archive path, a name listed by 'facectl backups', " +
		"or with --remote an offsite archive key.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context(), restoreRemote)
		if err != nil {
			return err
		}

		archive := args[0]
		switch {
		case restoreRemote:
			archive, err = c.Backups.FetchRemote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		case filepath.Base(archive) == archive:
			if resolved, err := c.Backups.Resolve(archive); err == nil {
				archive = resolved
			}
		}

		if err := c.Manager.Restore(cmd.Context(), archive); err != nil {
			return err
		}
		fmt.Printf("Restored %s (%d faces)\n", archive, c.Store.Len())
		return nil
	},
}

var backupsRemote bool

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backup archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		defer w.Flush()

		if backupsRemote {
			if !cfg.Storage.Enabled() {
				return fmt.Errorf("offsite storage is not configured")
			}
			client, err := minio.New(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			objects, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "KEY\tSIZE")
			for _, o := range objects {
				fmt.Fprintf(w, "%s\t%d\n", o.Key, o.Size)
			}
			return nil
		}

		c, err := openCore(cmd.Context(), false)
		if err != nil {
			return err
		}
		backups, err := c.Backups.ListBackups()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
		for _, b := range backups {
			fmt.Fprintf(w, "%s\t%d\t%s\n", b.Name, b.Size, b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().BoolVar(&backupUpload, "upload", false, "also upload the archive to offsite storage")
	restoreCmd.Flags().BoolVar(&restoreRemote, "remote", false, "download the archive from offsite storage first")
	backupsCmd.Flags().BoolVar(&backupsRemote, "remote", false, "list offsite archives instead of local ones")
	rootCmd.AddCommand(backupCmd, restoreCmd, backupsCmd)
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image> <name>",
	Short: "Enroll the single face found in an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		c, err := openCore(cmd.Context(), false)
		if err != nil {
			return err
		}

		id, err := c.Manager.EnrollImage(data, args[1])
		if err != nil {
			return fmt.Errorf("enroll %s: %w", args[0], err)
		}
		fmt.Printf("Enrolled %s as %s\n", args[1], id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled faces in enrollment order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context(), false)
		if err != nil {
			return err
		}

		records := c.Store.Records()
		if len(records) == 0 {
			fmt.Println("No faces enrolled.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tENROLLED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, rec.Name, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an enrolled face and its image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context(), false)
		if err != nil {
			return err
		}
		if err := c.Manager.RemoveFace(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var recognizeOutput string

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Detect and identify faces in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		c, err := openCore(cmd.Context(), false)
		if err != nil {
			return err
		}

		annotated, outcomes, err := c.Manager.RecognizeImage(data)
		if err != nil {
			return err
		}

		if len(outcomes) == 0 {
			fmt.Println("No faces detected.")
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "REGION\tNAME\tSCORE")
			for _, o := range outcomes {
				name := "(unknown)"
				if o.Identified() {
					name = o.Name
				}
				r := o.Region
				fmt.Fprintf(w, "%dx%d+%d+%d\t%s\t%.3f\n", r.Width, r.Height, r.X, r.Y, name, o.Score)
			}
			w.Flush()
		}

		if recognizeOutput != "" {
			if err := os.WriteFile(recognizeOutput, annotated, 0644); err != nil {
				return err
			}
			fmt.Printf("Annotated image written to %s\n", recognizeOutput)
		}
		return nil
	},
}

func init() {
	recognizeCmd.Flags().StringVarP(&recognizeOutput, "output", "o", "", "write the annotated image (JPEG) to this path")
	rootCmd.AddCommand(enrollCmd, listCmd, removeCmd, recognizeCmd)
}

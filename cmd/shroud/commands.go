package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoobzio/shroud"
	"go.uber.org/zap"
)

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <table>",
		Short: "Print the sensitivity classification of every column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			t, err := readTable(args[0])
			if err != nil {
				return err
			}
			c, err := a.cfg.newClassifier()
			if err != nil {
				return err
			}
			desc := c.Classify(cmd.Context(), t)
			for _, col := range desc.Ambiguous() {
				a.log.Warn("ambiguous column treated as non-sensitive",
					zap.String("column", col), zap.Float64("confidence", desc[col].Confidence))
			}
			a.log.Info("classified", append(tableFields(t),
				zap.Strings("sensitive", desc.Sensitive()), since(start))...)
			return writeOutput(cmd.OutOrStdout(), "", a.cfg.Format, desc)
		},
	}
}

func newProcessCmd(a *app) *cobra.Command {
	var (
		joinKeys []string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "process <table>...",
		Short: "Vault raw tables and write their pseudonymized and masked views",
		Long: "Classifies each table, stores the raw copy in the vault and writes\n" +
			"<name>.pseudonymized.<format> and <name>.masked.<format> to the output directory.\n" +
			"All tables share one session, so join keys stay joinable across them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.password(cmd)
			if err != nil {
				return err
			}
			pl, err := a.pipeline()
			if err != nil {
				return err
			}
			s, err := shroud.NewSession()
			if err != nil {
				return err
			}
			defer s.Close()
			s.MarkJoinKey(joinKeys...)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, path := range args {
				start := time.Now()
				t, err := readTable(path)
				if err != nil {
					return err
				}
				res, err := pl.Process(cmd.Context(), s, t, password)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, f := range res.Report.Failures {
					a.log.Warn("cell replaced by sentinel token",
						zap.String("table", f.Table), zap.String("column", f.Column),
						zap.Int("row", f.Row), zap.String("reason", f.Reason))
				}

				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				for suffix, view := range map[string]*shroud.Table{"pseudonymized": res.Pseudonymized, "masked": res.Masked} {
					out := filepath.Join(outDir, base+"."+suffix+"."+a.cfg.Format)
					if err := writeOutput(nil, out, a.cfg.Format, view); err != nil {
						return err
					}
				}
				a.log.Info("processed", append(tableFields(t),
					zap.String("handle", res.Handle.String()),
					zap.Strings("sensitive", res.Descriptors.Sensitive()),
					zap.Int("failed", res.Report.Failed()), since(start))...)
				fmt.Fprintf(w, "%s\t%s\n", t.Name, res.Handle)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&joinKeys, "join-key", nil, "Column whose tokens must stay joinable across tables")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Directory for the derived views")
	return cmd
}

func newStoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "store <table>",
		Short: "Encrypt a raw table into the vault and print its handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			t, err := readTable(args[0])
			if err != nil {
				return err
			}
			password, err := a.password(cmd)
			if err != nil {
				return err
			}
			v, err := a.cfg.newVault()
			if err != nil {
				return err
			}
			h, err := v.Store(cmd.Context(), t, password)
			if err != nil {
				return err
			}
			a.log.Info("stored", append(tableFields(t), zap.String("handle", h.String()), since(start))...)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), h)
			return err
		},
	}
}

func newRetrieveCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "retrieve <handle>",
		Short: "Decrypt a stored table to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := shroud.ParseHandle(args[0])
			if err != nil {
				return err
			}
			password, err := a.password(cmd)
			if err != nil {
				return err
			}
			v, err := a.cfg.newVault()
			if err != nil {
				return err
			}
			t, err := v.Retrieve(cmd.Context(), h, password)
			if err != nil {
				return err
			}
			a.log.Info("retrieved", append(tableFields(t), zap.String("handle", h.String()))...)
			return writeOutput(nil, out, a.cfg.Format, t)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "File to write the raw table to")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <handle>",
		Short: "Check that a stored table opens under the master password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := shroud.ParseHandle(args[0])
			if err != nil {
				return err
			}
			password, err := a.password(cmd)
			if err != nil {
				return err
			}
			v, err := a.cfg.newVault()
			if err != nil {
				return err
			}
			if err := v.Verify(cmd.Context(), h, password); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", h)
			return err
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <handle>",
		Short: "Overwrite and remove a stored table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := shroud.ParseHandle(args[0])
			if err != nil {
				return err
			}
			v, err := a.cfg.newVault()
			if err != nil {
				return err
			}
			if _, err := v.Delete(cmd.Context(), h); err != nil {
				return err
			}
			a.log.Info("deleted", zap.String("handle", h.String()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", h)
			return err
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.cfg.newVault()
			if err != nil {
				return err
			}
			infos, err := v.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HANDLE\tNAME\tROWS\tCREATED\tACCESSES")
			for _, info := range infos {
				md := info.Metadata
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n",
					info.Handle, md.Name, md.Rows, md.CreatedAt.Format(time.RFC3339), md.AccessCount)
			}
			return w.Flush()
		},
	}
}

func newMaskCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "mask <handle>",
		Short: "Print the display view of a stored table",
		Long:  "Prints the masked view of a stored table, or the original values with --reveal.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := shroud.ParseHandle(args[0])
			if err != nil {
				return err
			}
			password, err := a.password(cmd)
			if err != nil {
				return err
			}
			v, err := a.cfg.newVault()
			if err != nil {
				return err
			}
			c, err := a.cfg.newClassifier()
			if err != nil {
				return err
			}
			m, err := shroud.NewDisplayMasker()
			if err != nil {
				return err
			}

			raw, err := v.Retrieve(cmd.Context(), h, password)
			if err != nil {
				return err
			}
			desc := c.Classify(cmd.Context(), raw)
			out, err := m.Mask(cmd.Context(), shroud.TableSource{Table: raw}, desc, reveal)
			if err != nil {
				return err
			}
			if reveal {
				a.log.Warn("revealing original values", zap.String("handle", h.String()))
			}
			return writeOutput(cmd.OutOrStdout(), "", a.cfg.Format, out)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show original values instead of masked ones")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var (
		key      string
		strategy string
		mode     string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "merge <left> <right>",
		Short: "Join two tables in the same privacy mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := readTable(args[0])
			if err != nil {
				return err
			}
			right, err := readTable(args[1])
			if err != nil {
				return err
			}
			res, err := shroud.Merge(cmd.Context(), left, right, key,
				shroud.MergeStrategy(strategy), shroud.PrivacyMode(mode))
			if err != nil {
				return err
			}
			a.log.Info("merged", append(tableFields(res.Table),
				zap.Float64("quality", res.QualityScore),
				zap.Int("matched", res.Matched),
				zap.Int("unmatched_left", res.Unmatched.Left),
				zap.Int("unmatched_right", res.Unmatched.Right))...)
			return writeOutput(cmd.OutOrStdout(), out, a.cfg.Format, res.Table)
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Join key column")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(shroud.MergeInner), "Merge strategy (inner, left, right, outer)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(shroud.ModePseudonymized), "Privacy mode of both inputs")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func (a *app) pipeline() (*shroud.Pipeline, error) {
	c, err := a.cfg.newClassifier()
	if err != nil {
		return nil, err
	}
	p, err := a.cfg.newPseudonymizer()
	if err != nil {
		return nil, err
	}
	m, err := shroud.NewDisplayMasker()
	if err != nil {
		return nil, err
	}
	v, err := a.cfg.newVault()
	if err != nil {
		return nil, err
	}
	return shroud.NewPipeline(c, p, m, v)
}

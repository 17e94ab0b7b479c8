package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/PowerDNS/simpleblob"
	"github.com/c2h5oh/datasize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/utils"
)

func init() {
	rootCmd.AddCommand(checkpointsCmd)

	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsListCmd.Flags().StringP("prefix", "p", "", "Prefix filter")
	checkpointsListCmd.Flags().BoolP("long", "l", false, "Add extra information, like size")
	checkpointsListCmd.Flags().BoolP("time", "t", false, "Sort by checkpoint time")

	checkpointsCmd.AddCommand(checkpointsRemoveCmd)

	checkpointsCmd.AddCommand(checkpointsDumpCmd)
	checkpointsDumpCmd.Flags().Uint32P("object", "o", 0, "Only output the object with this ID")
	checkpointsDumpCmd.Flags().Int("max-value", 32, "Truncate values longer than this, 0 to disable")
	checkpointsDumpCmd.Flags().BoolP("local", "l", false,
		"Dump a local file instead of a stored checkpoint")

	checkpointsCmd.AddCommand(checkpointsGetCmd)
	checkpointsGetCmd.Flags().StringP("output", "o", "",
		"Output filename, if not the same as the stored name")
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Stored checkpoint operations (list, dump, remove, etc)",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func getStorage(ctx context.Context) (simpleblob.Interface, error) {
	if conf.Storage.Type == "" {
		return nil, fmt.Errorf("no storage.type configured")
	}
	return simpleblob.GetBackend(ctx, conf.Storage.Type, conf.Storage.Options)
}

var checkpointsListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List checkpoints",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()

		st, err := getStorage(ctx)
		if err != nil {
			return err
		}

		prefix, err := cmd.Flags().GetString("prefix")
		if err != nil {
			return err
		}
		long, err := cmd.Flags().GetBool("long")
		if err != nil {
			return err
		}
		byTime, err := cmd.Flags().GetBool("time")
		if err != nil {
			return err
		}

		list, err := st.List(ctx, prefix)
		if err != nil {
			return err
		}
		if byTime {
			sortByTime(list)
		}

		for _, blob := range list {
			if !long {
				fmt.Printf("%s\n", blob.Name)
				continue
			}
			ni, err := protocol.ParseName(blob.Name)
			if err != nil {
				fmt.Printf("%10s\t%-20s\t%-24s\t%s\n",
					datasize.ByteSize(blob.Size).HumanReadable(), "-", "-", blob.Name)
				continue
			}
			fmt.Printf("%10s\t%-20s\t%-24s\t%s\n",
				datasize.ByteSize(blob.Size).HumanReadable(),
				ni.InstanceID,
				ni.Timestamp.Format("2006-01-02 15:04:05.000"),
				blob.Name)
		}
		return nil
	},
}

var checkpointsRemoveCmd = &cobra.Command{
	Use:          "remove",
	Short:        "Remove checkpoint",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()

		st, err := getStorage(ctx)
		if err != nil {
			return err
		}

		return st.Delete(ctx, args[0])
	},
}

var checkpointsDumpCmd = &cobra.Command{
	Use:          "dump",
	Short:        "Dump checkpoint contents for debugging",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()

		objectID, err := cmd.Flags().GetUint32("object")
		if err != nil {
			return err
		}
		maxValue, err := cmd.Flags().GetInt("max-value")
		if err != nil {
			return err
		}
		local, err := cmd.Flags().GetBool("local")
		if err != nil {
			return err
		}

		var data []byte
		if local {
			data, err = os.ReadFile(args[0])
			if err != nil {
				return err
			}
		} else {
			st, err := getStorage(ctx)
			if err != nil {
				return err
			}
			data, err = st.Load(ctx, args[0])
			if err != nil {
				return err
			}
		}
		cp, err := protocol.LoadData(data)
		if err != nil {
			return err
		}

		frames := cp.Frames
		if objectID > 0 {
			frames = lo.Filter(frames, func(f protocol.Frame, _ int) bool {
				return f.ObjectID == objectID
			})
		}

		// Buffered output speeds things up
		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		outf := func(sfmt string, args ...any) {
			_, _ = fmt.Fprintf(out, sfmt, args...)
		}

		t := time.Unix(0, int64(cp.TimestampNano))
		outf("format=%d compat=%d instance=%q time=%s (%s ago) objects=%d\n",
			cp.FormatVersion, cp.CompatVersion, cp.Instance,
			t.UTC(), time.Since(t).Round(time.Second), len(cp.Frames))

		for _, f := range frames {
			parent := "-"
			if f.ParentID != nil {
				parent = f.ParentID.String()
			}
			outf("\n### object %d (snapshot=%d, version=%d, parent=%s)\n\n",
				f.ObjectID, f.SnapshotID, f.Version, parent)
			for _, sv := range f.Entries {
				outf("%5d  =  %s  (hash=%016x)\n", sv.Slot, utils.DisplayValue(sv.Value, maxValue), sv.Hash)
			}
		}
		return nil
	},
}

var checkpointsGetCmd = &cobra.Command{
	Use:          "get",
	Short:        "Download a checkpoint",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()

		outName, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if outName == "" {
			outName = args[0]
		}

		st, err := getStorage(ctx)
		if err != nil {
			return err
		}
		data, err := st.Load(ctx, args[0])
		if err != nil {
			return err
		}

		return os.WriteFile(outName, data, 0666)
	},
}

func sortByTime(list simpleblob.BlobList) {
	slices.SortStableFunc(list, func(a, b simpleblob.Blob) int {
		na, errA := protocol.ParseName(a.Name)
		nb, errB := protocol.ParseName(b.Name)
		switch {
		case errA != nil && errB != nil:
			// Invalid names are sorted by name
			return strings.Compare(a.Name, b.Name)
		case errA != nil:
			// Invalid names come before valid names
			return -1
		case errB != nil:
			return 1
		}
		return na.Timestamp.Compare(nb.Timestamp)
	})
}

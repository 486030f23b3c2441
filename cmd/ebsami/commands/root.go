package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ebsami/ebsami/internal/builder"
	"github.com/ebsami/ebsami/internal/catalog"
	"github.com/ebsami/ebsami/internal/config"
	"github.com/ebsami/ebsami/internal/remote"
)

var rootCmd = &cobra.Command{
	Use:   "ebsami --region <region> --arch <arch> --base <family> --tarball <path> --name <name>",
	Short: "Registers an EBS-backed machine image from a raw disk image tarball",
	Long: `ebsami provisions an ephemeral builder instance, writes a raw disk image
onto a fresh EBS volume over SSH and registers the result as a bootable
machine image. Every resource it creates is torn down afterwards, whether
the build succeeded or not.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.Flags().String("region", "", "target region (ex: us-east-1)")
	rootCmd.Flags().String("arch", "", "image architecture: i386 or x86_64")
	rootCmd.Flags().String("base", "", "base OS family of the image (ex: SLES11_SP1)")
	rootCmd.Flags().String("tarball", "", "path to the raw disk image tarball")
	rootCmd.Flags().String("name", "", "name to register the image under")
	rootCmd.Flags().String("description", "", "image description")
	rootCmd.Flags().Int32("volume_size", 0, "volume size in GB; grown to fit the image when too small")
	rootCmd.Flags().Bool("test_ami", false, "boot a test instance from the registered image")
	rootCmd.Flags().Bool("public", false, "make the registered image public")

	for _, name := range []string{
		"region", "arch", "base", "tarball", "name",
		"description", "volume_size", "test_ami", "public",
	} {
		if err := viper.BindPFlag(name, rootCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := clog.WithLogger(cmd.Context(), clog.New(slog.Default().Handler()))

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	awsCfg, err := config.AWSConfig(ctx, viper.GetString("region"), creds)
	if err != nil {
		return err
	}

	b, err := builder.New(ec2.NewFromConfig(awsCfg), builder.Config{
		Region:       viper.GetString("region"),
		Arch:         viper.GetString("arch"),
		Base:         viper.GetString("base"),
		Tarball:      viper.GetString("tarball"),
		Name:         viper.GetString("name"),
		Description:  viper.GetString("description"),
		VolumeSizeGB: viper.GetInt32("volume_size"),
		TestImage:    viper.GetBool("test_ami"),
		MakePublic:   viper.GetBool("public"),
	})
	if err != nil {
		return err
	}
	if err := b.Run(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), b.Resources().ImageID)
	return nil
}

// exitCode maps a run failure to the process exit status. Specific
// preconditions are classified before the general provisioning bucket, which
// only applies once cleanup has already run.
func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrCredentialMissing):
		return 3
	case errors.Is(err, builder.ErrToolMissing):
		return 2
	case errors.Is(err, remote.ErrConnectTimeout):
		return 1
	case errors.Is(err, catalog.ErrUnknownRegion),
		errors.Is(err, catalog.ErrUnknownArch):
		return 1
	case errors.Is(err, builder.ErrProvisioning):
		return 10
	default:
		return 1
	}
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/medkg/medkg/internal/domain/anchor"
	"github.com/medkg/medkg/internal/domain/biomarker"
	"github.com/medkg/medkg/internal/domain/cancer"
	"github.com/medkg/medkg/internal/domain/disease"
	"github.com/medkg/medkg/internal/domain/drug"
	"github.com/medkg/medkg/internal/domain/procedure"
	"github.com/medkg/medkg/internal/domain/regimen"
)

func drugsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drugs",
		Short: "Normalize the drug price master into anticancer_master",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := drug.NewNormalizer(logger).Run(ctx, drug.Input{
				PricePath: stringFlag(cmd, "price", ""),
				OutDir:    stringFlag(cmd, "out", cfg.BridgesDir()),
			})
			return finish(cmd.OutOrStdout(), res.Summary, err)
		},
	}
	cmd.Flags().String("price", "", "Drug price master (xlsx or csv)")
	cmd.Flags().String("out", "", "Output directory (default DATA_DIR/bridges)")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func anchorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anchors",
		Short: "Refine anchor candidates into the drug dictionary and brand aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			filters, err := anchor.LoadFilters(cfg.AnchorFiltersPath)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := anchor.NewService(filters, logger).Run(ctx, anchor.Input{
				CandidatesPath: stringFlag(cmd, "candidates", ""),
				SeedPath:       stringFlag(cmd, "seed", ""),
				MasterPath:     stringFlag(cmd, "master", ""),
				OutDir:         stringFlag(cmd, "out", cfg.AnchorDir()),
			})
			return finish(cmd.OutOrStdout(), res.Summary, err)
		},
	}
	cmd.Flags().String("candidates", "", "Anchor candidate table (csv)")
	cmd.Flags().String("seed", "", "Brand alias seed (yaml)")
	cmd.Flags().String("master", "", "anticancer_master.json for brand extraction")
	cmd.Flags().String("out", "", "Output directory (default DATA_DIR/anchor)")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

func biomarkersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biomarkers",
		Short: "Map biomarkers to EDI tests",
	}

	// biomarkers scan-codes
	scanCmd := &cobra.Command{
		Use:   "scan-codes",
		Short: "Write a keyword-scanned code table for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			sum, err := biomarker.NewService(logger).Scan(ctx, biomarker.ScanInput{
				BiomarkersPath: stringFlag(cmd, "biomarkers", ""),
				CrosswalkPath:  stringFlag(cmd, "crosswalk", ""),
				OutPath:        stringFlag(cmd, "out", ""),
			})
			return finish(cmd.OutOrStdout(), sum, err)
		},
	}
	scanCmd.Flags().String("biomarkers", "", "Pre-extracted biomarker list (json)")
	scanCmd.Flags().String("crosswalk", "", "EDI to SNOMED crosswalk (xlsx or csv)")
	scanCmd.Flags().String("out", "", "Code table output file")
	for _, f := range []string{"biomarkers", "crosswalk", "out"} {
		_ = scanCmd.MarkFlagRequired(f)
	}
	cmd.AddCommand(scanCmd)

	// biomarkers map
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Link biomarkers to tests and write the biomarker bridges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := biomarker.NewService(logger).Map(ctx, biomarker.MapInput{
				BiomarkersPath: stringFlag(cmd, "biomarkers", ""),
				CrosswalkPath:  stringFlag(cmd, "crosswalk", ""),
				CodeTablePath:  stringFlag(cmd, "codes", ""),
				MasterPath:     stringFlag(cmd, "master", ""),
				AliasPath:      stringFlag(cmd, "anchors", ""),
				OutDir:         stringFlag(cmd, "out", cfg.BridgesDir()),
			})
			return finish(cmd.OutOrStdout(), res.Summary, err)
		},
	}
	mapCmd.Flags().String("biomarkers", "", "Pre-extracted biomarker list (json)")
	mapCmd.Flags().String("crosswalk", "", "EDI to SNOMED crosswalk (xlsx or csv)")
	mapCmd.Flags().String("codes", "", "Reviewed code table (json)")
	mapCmd.Flags().String("master", "", "anticancer_master.json for target drugs")
	mapCmd.Flags().String("anchors", "", "brand_alias.yaml for target drugs")
	mapCmd.Flags().String("out", "", "Output directory (default DATA_DIR/bridges)")
	_ = mapCmd.MarkFlagRequired("biomarkers")
	_ = mapCmd.MarkFlagRequired("crosswalk")
	cmd.AddCommand(mapCmd)

	return cmd
}

func bridgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridges",
		Short: "Build the KCD, KDRG, NCC and HIRA bridges",
	}
	cmd.AddCommand(kcdCmd())
	cmd.AddCommand(kdrgCmd())
	cmd.AddCommand(nccCmd())
	cmd.AddCommand(regimensCmd())
	return cmd
}

func kcdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kcd",
		Short: "Build diseases.json from the KCD master",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := disease.NewBuilder(logger).Run(ctx, disease.Input{
				MasterPath: stringFlag(cmd, "master", ""),
				OutDir:     stringFlag(cmd, "out", cfg.BridgesDir()),
			})
			return finish(cmd.OutOrStdout(), res.Summary, err)
		},
	}
	cmd.Flags().String("master", "", "KCD master (xlsx, header on row 3)")
	cmd.Flags().String("out", "", "Output directory (default DATA_DIR/bridges)")
	_ = cmd.MarkFlagRequired("master")
	return cmd
}

func kdrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kdrg",
		Short: "Build procedures.json from the parsed KDRG tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			_, sum, err := procedure.NewBuilder(logger).Run(ctx, procedure.Input{
				SourcePath: stringFlag(cmd, "input", ""),
				OutDir:     stringFlag(cmd, "out", cfg.BridgesDir()),
			})
			return finish(cmd.OutOrStdout(), sum, err)
		},
	}
	cmd.Flags().String("input", "", "Parsed KDRG tables (json)")
	cmd.Flags().String("out", "", "Output directory (default DATA_DIR/bridges)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func nccCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ncc",
		Short: "Build cancers.json and cancer_kcd_mapping.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := cancer.NewBuilder(logger).Run(ctx, cancer.Input{
				PagesPath:   stringFlag(cmd, "input", ""),
				MappingPath: stringFlag(cmd, "mapping", ""),
				KCDPath:     stringFlag(cmd, "kcd", ""),
				DraftPath:   stringFlag(cmd, "draft", ""),
				OutDir:      stringFlag(cmd, "out", cfg.BridgesDir()),
			})
			return finish(cmd.OutOrStdout(), res.Summary, err)
		},
	}
	cmd.Flags().String("input", "", "Parsed NCC page file or directory of page files")
	cmd.Flags().String("mapping", "", "Reviewed cancer to KCD mapping (csv)")
	cmd.Flags().String("kcd", "", "diseases.json, needed for --draft")
	cmd.Flags().String("draft", "", "Write a reviewer mapping draft to this file")
	cmd.Flags().String("out", "", "Output directory (default DATA_DIR/bridges)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}

func regimensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regimens",
		Short: "Build regimens.json from parsed HIRA announcements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			_, sum, err := regimen.Run(ctx, regimen.Input{
				AnnouncementsPath: stringFlag(cmd, "input", ""),
				MasterPath:        stringFlag(cmd, "master", ""),
				AliasPath:         stringFlag(cmd, "anchors", ""),
				CancerKCDPath:     stringFlag(cmd, "cancer-kcd", ""),
				OutDir:            stringFlag(cmd, "out", cfg.BridgesDir()),
			}, logger)
			return finish(cmd.OutOrStdout(), sum, err)
		},
	}
	cmd.Flags().String("input", "", "Parsed HIRA announcements (json)")
	cmd.Flags().String("master", "", "anticancer_master.json")
	cmd.Flags().String("anchors", "", "brand_alias.yaml")
	cmd.Flags().String("cancer-kcd", "", "cancer_kcd_mapping.json")
	cmd.Flags().String("out", "", "Output directory (default DATA_DIR/bridges)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("master")
	return cmd
}

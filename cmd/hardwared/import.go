package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/log"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Discover pre-existing external inventory via every enabled worker's ImportExisting hook",
	RunE:  runImport,
}

func init() {
	cfg := config.New()
	cfg.AddFlags(importCmd.Flags())
	importCmd.Flags().Bool("dry-run", false, "Report discovered items without inserting Hardware rows")
}

// importedHardware accumulates one worker-discovered item per UUID,
// mirroring cmd/importer.py's defaultdict(dict) merge: later workers'
// properties are merged on top of earlier ones for the same UUID, and
// the hardware type is whichever enabled hardware type last claimed the
// worker that produced the item.
type importedHardware struct {
	name         string
	hardwareType string
	properties   map[string]any
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("import")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, store, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	discovered, err := discoverExisting(cmd.Context(), rt, logger)
	if err != nil {
		return fmt.Errorf("discover existing inventory: %w", err)
	}

	if len(discovered) == 0 {
		logger.Info().Msg("no pre-existing inventory discovered")
		return nil
	}

	for uuidStr, item := range discovered {
		logger.Info().
			Str("uuid", uuidStr).
			Str("name", item.name).
			Str("hardware_type", item.hardwareType).
			Msg("discovered hardware item")

		if dryRun {
			continue
		}

		hw := &types.Hardware{
			UUID:         uuidStr,
			Name:         item.name,
			ProjectID:    "admin",
			HardwareType: item.hardwareType,
			Properties:   item.properties,
		}

		ht, ok := rt.Registry.HardwareType(item.hardwareType)
		if !ok {
			logger.Warn().Str("hardware_type", item.hardwareType).Msg("skipping item with unregistered hardware type")
			continue
		}
		enabledWorkers := intersect(ht.EnabledWorkers(), rt.EnabledWorkerNames())

		if err := rt.Store.CreateHardware(hw, enabledWorkers, types.WorkerStateSteady); err != nil {
			logger.Error().Err(err).Str("uuid", uuidStr).Msg("failed to insert imported hardware")
			continue
		}
	}

	return nil
}

// discoverExisting walks every enabled hardware type's enabled workers,
// calling ImportExisting on those that implement driver.Importer, and
// merges the results by UUID, following doni's cmd/importer.py
// import_existing().
func discoverExisting(ctx context.Context, rt *runtime.Runtime, logger zerolog.Logger) (map[string]*importedHardware, error) {
	existing := make(map[string]*importedHardware)
	for _, ht := range rt.EnabledHardwareTypes() {
		for _, workerName := range ht.EnabledWorkers() {
			if !rt.EnabledWorkerNames()[workerName] {
				continue
			}
			w, ok := rt.Registry.Worker(workerName)
			if !ok {
				continue
			}
			importer, ok := w.(driver.Importer)
			if !ok {
				continue
			}

			items, err := importer.ImportExisting(ctx)
			if err != nil {
				return nil, fmt.Errorf("worker %s: %w", workerName, err)
			}
			logger.Debug().Str("worker", workerName).Int("count", len(items)).Msg("imported items from worker")

			for _, item := range items {
				key := item.UUID
				if key == "" {
					key = uuid.NewString()
				}
				existingItem, ok := existing[key]
				if !ok {
					existingItem = &importedHardware{properties: map[string]any{}}
					existing[key] = existingItem
				}
				if item.Name != "" {
					existingItem.name = item.Name
				}
				existingItem.hardwareType = ht.Name()
				for k, v := range item.Properties {
					existingItem.properties[k] = v
				}
			}
		}
	}
	return existing, nil
}

func intersect(names []string, enabled map[string]bool) []string {
	var out []string
	for _, n := range names {
		if enabled[n] {
			out = append(out, n)
		}
	}
	return out
}

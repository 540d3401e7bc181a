// ifctool is a CLI utility for inspecting and converting IFC models.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/ifcmesh/internal/config"
	"github.com/Faultbox/ifcmesh/internal/export"
	"github.com/Faultbox/ifcmesh/internal/logger"
	"github.com/Faultbox/ifcmesh/internal/metrics"
	"github.com/Faultbox/ifcmesh/internal/picking"
	"github.com/Faultbox/ifcmesh/pkg/formats"
	"github.com/Faultbox/ifcmesh/pkg/ifc"
	"github.com/Faultbox/ifcmesh/pkg/mesh"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "entity", "e":
		err = cmdEntity(args)
	case "triangle", "tri":
		err = cmdTriangle(args)
	case "pick":
		err = cmdPick(args)
	case "export", "x":
		err = cmdExport(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ifctool - IFC model inspection utility

Usage:
  ifctool <command> [options]

Commands:
  info <file.ifc>                        Show header, counts and diagnostics
  entity <file.ifc> <id>                 Print an entity's properties
  triangle <file.ifc> <t>                Resolve a triangle to its entity
  pick <file.ifc> ox oy oz dx dy dz      Cast a ray and report the first hit
  export <file.ifc> [-o out.glb]         Write the merged mesh as glTF/GLB
  config [-o path]                       Print or save the effective config

Common options:
  -config path   -debug   -strict   -workers N   -tolerance T
  -index-width 16|32   -log-file path   -metrics path.prom

Examples:
  ifctool info building.ifc
  ifctool entity -indirect building.ifczip 1042
  ifctool pick building.ifc 0 0 100 0 0 -1
  ifctool export -o building.glb building.ifc`)
}

// session holds the tool state shared by commands that load a model.
type session struct {
	cfg      *config.Config
	store    *ifc.Store
	observer *metrics.PrometheusObserver
	model    ifc.ModelID
	result   *ifc.LoadResult
}

// parse parses command arguments together with the shared config flags.
func parse(name string, args []string, minArgs int, usage string, register func(fs *flag.FlagSet)) (*flag.FlagSet, *config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	if register != nil {
		register(fs)
	}
	fs.Parse(args)

	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Usage: ifctool "+usage)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    logFile(cfg.Logging.LogFile),
		Console: true,
	}); err != nil {
		return nil, nil, err
	}
	return fs, cfg, nil
}

func logFile(path string) logger.FileConfig {
	if path == "" {
		return logger.FileConfig{}
	}
	return logger.DefaultFileConfig(path)
}

// open loads path into a fresh store.
func open(cfg *config.Config, path string) (*session, error) {
	s := &session{cfg: cfg, observer: metrics.NewPrometheusObserver()}
	s.store = ifc.NewStore(ifc.WithLogger(logger.Log), ifc.WithObserver(s.observer))

	ctx := context.Background()
	if cfg.Loader.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Loader.Timeout)
		defer cancel()
	}

	res, err := s.store.LoadFile(ctx, path, cfg.LoadOptions())
	s.writeMetrics()
	if err != nil {
		return nil, err
	}
	s.model = res.ModelID
	s.result = res
	return s, nil
}

func (s *session) writeMetrics() {
	if s.cfg.Metrics.Textfile == "" {
		return
	}
	if err := s.observer.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		logger.Warn("writing metrics failed", zap.String("path", s.cfg.Metrics.Textfile), zap.Error(err))
	}
}

func cmdInfo(args []string) error {
	fs, cfg, err := parse("info", args, 1, "info <file.ifc>", nil)
	if err != nil {
		return err
	}
	s, err := open(cfg, fs.Arg(0))
	if err != nil {
		return err
	}

	info, err := s.store.Info(s.model)
	if err != nil {
		return err
	}
	res := s.result

	fmt.Printf("File:       %s\n", fs.Arg(0))
	fmt.Printf("Container:  %s\n", info.Container)
	fmt.Printf("Schema:     %s\n", info.Header.Schema())
	if info.Header.OriginatingSystem != "" {
		fmt.Printf("Authoring:  %s\n", info.Header.OriginatingSystem)
	}
	fmt.Printf("Entities:   %d\n", res.Entities)
	fmt.Printf("Products:   %d (%d rendered)\n", res.Products, res.Rendered)
	if res.Excluded > 0 {
		fmt.Printf("Excluded:   %d\n", res.Excluded)
	}
	fmt.Printf("Vertices:   %d\n", res.Vertices)
	fmt.Printf("Triangles:  %d\n", res.Triangles)
	if res.Triangles > 0 {
		b := info.Bounds
		fmt.Printf("Bounds:     [%.3f %.3f %.3f] - [%.3f %.3f %.3f]\n",
			b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
	}
	fmt.Printf("Load time:  %s\n", res.Duration)

	if len(res.Diagnostics) > 0 {
		counts := make(map[string]int)
		for _, d := range res.Diagnostics {
			counts[string(d.Kind)]++
		}
		fmt.Println()
		fmt.Println("Diagnostics:")
		printCounts(counts)
	}
	if len(res.Unsupported) > 0 {
		fmt.Println()
		fmt.Println("Unsupported shapes:")
		printCounts(res.Unsupported)
	}
	return nil
}

// printCounts prints a tally sorted by count, then name.
func printCounts(counts map[string]int) {
	type stat struct {
		name  string
		count int
	}
	var stats []stat
	for name, count := range counts {
		stats = append(stats, stat{name, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].name < stats[j].name
	})
	for _, st := range stats {
		fmt.Printf("  %-28s %d\n", st.name, st.count)
	}
}

func cmdEntity(args []string) error {
	var indirect, psets *bool
	fs, cfg, err := parse("entity", args, 2, "entity [-indirect] [-psets] <file.ifc> <id>", func(fs *flag.FlagSet) {
		indirect = fs.Bool("indirect", false, "Expand referenced entities")
		psets = fs.Bool("psets", false, "Include property sets")
	})
	if err != nil {
		return err
	}
	id, err := parseExpressID(fs.Arg(1))
	if err != nil {
		return err
	}
	s, err := open(cfg, fs.Arg(0))
	if err != nil {
		return err
	}

	props, err := s.store.Properties(s.model, id, *indirect)
	if err != nil {
		return fmt.Errorf("entity #%d: %w", id, err)
	}
	out := map[string]any{"properties": props}

	rec, err := s.store.GetEntity(s.model, id)
	if err != nil {
		return err
	}
	if guid, ok := rec.GlobalID(); ok {
		out["uuid"] = guid.String()
	}
	index, err := s.store.Index(s.model)
	if err != nil {
		return err
	}
	if ranges := triangleRanges(index, id); len(ranges) > 0 {
		out["triangles"] = ranges
	}
	if *psets {
		sets, err := s.store.PropertySets(s.model, id)
		if err != nil {
			return err
		}
		out["propertySets"] = sets
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding entity: %w", err)
	}
	return enc.Close()
}

type triangleRange struct {
	Start uint32 `yaml:"start"`
	Count uint32 `yaml:"count"`
}

// triangleRanges lists the mesh triangles an entity produced.
func triangleRanges(index mesh.GeometryIndex, id uint32) []triangleRange {
	var out []triangleRange
	for _, r := range index.RangesFor(id) {
		out = append(out, triangleRange{Start: r.Start, Count: r.Count})
	}
	return out
}

// parseExpressID accepts "42" or "#42".
func parseExpressID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid entity id %q", s)
	}
	return uint32(v), nil
}

func cmdTriangle(args []string) error {
	fs, cfg, err := parse("triangle", args, 2, "triangle <file.ifc> <t>...", nil)
	if err != nil {
		return err
	}
	s, err := open(cfg, fs.Arg(0))
	if err != nil {
		return err
	}

	for _, arg := range fs.Args()[1:] {
		t, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid triangle index %q", arg)
		}
		id, err := s.store.ResolveTriangle(s.model, uint32(t))
		if errors.Is(err, ifc.ErrIndexOutOfRange) {
			fmt.Printf("%d\tout of range (%d triangles)\n", t, s.result.Triangles)
			continue
		}
		if err != nil {
			return err
		}
		rec, err := s.store.GetEntity(s.model, id)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t#%d\t%s\n", t, id, rec.Type)
	}
	return nil
}

func cmdPick(args []string) error {
	fs, cfg, err := parse("pick", args, 7, "pick <file.ifc> ox oy oz dx dy dz", nil)
	if err != nil {
		return err
	}
	var v [6]float32
	for i := range v {
		f, err := strconv.ParseFloat(fs.Arg(i+1), 32)
		if err != nil {
			return fmt.Errorf("invalid ray component %q", fs.Arg(i+1))
		}
		v[i] = float32(f)
	}
	ray := picking.NewRay([3]float32{v[0], v[1], v[2]}, [3]float32{v[3], v[4], v[5]})
	if !ray.Valid() {
		return errors.New("ray direction must be non-zero")
	}

	s, err := open(cfg, fs.Arg(0))
	if err != nil {
		return err
	}
	hit, ok, err := s.store.Pick(s.model, ray)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No hit")
		return nil
	}
	rec, err := s.store.GetEntity(s.model, hit.EntityID)
	if err != nil {
		return err
	}
	fmt.Printf("Entity:    #%d %s\n", hit.EntityID, rec.Type)
	if name := entityName(rec); name != "" {
		fmt.Printf("Name:      %s\n", name)
	}
	fmt.Printf("Triangle:  %d\n", hit.Triangle)
	fmt.Printf("Distance:  %.4f\n", hit.Distance)
	fmt.Printf("Point:     %.4f %.4f %.4f\n", hit.Point[0], hit.Point[1], hit.Point[2])
	return nil
}

// entityName returns the Name attribute of a rooted entity.
func entityName(rec *formats.EntityRecord) string {
	if formats.AttributeName(rec.Type, 2) != "Name" {
		return ""
	}
	name, _ := rec.Attr(2).AsString()
	return name
}

func cmdExport(args []string) error {
	var output, format *string
	fs, cfg, err := parse("export", args, 1, "export [-o output] [-format glb|gltf] <file.ifc>", func(fs *flag.FlagSet) {
		output = fs.String("o", "", "Output path (default: input name with .glb/.gltf)")
		format = fs.String("format", "", "Output format: glb or gltf")
	})
	if err != nil {
		return err
	}
	if *format != "" {
		cfg.Export.Format = *format
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	in := fs.Arg(0)
	out := *output
	if out == "" {
		out = cfg.Export.Output
	}
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + "." + cfg.Export.Format
	}

	s, err := open(cfg, in)
	if err != nil {
		return err
	}
	m, err := s.store.Mesh(s.model)
	if err != nil {
		return err
	}
	index, err := s.store.Index(s.model)
	if err != nil {
		return err
	}

	opts := cfg.ExportOptions()
	opts.Generator = "ifctool"
	opts.Names = make(map[uint32]string, len(index))
	for _, id := range index.EntityIDs() {
		rec, err := s.store.GetEntity(s.model, id)
		if err != nil {
			return err
		}
		if name := entityName(rec); name != "" {
			opts.Names[id] = name
		}
	}

	if err := export.WriteFile(out, m, index, opts); err != nil {
		return err
	}
	logger.Info("model exported",
		zap.String("output", out),
		zap.Int("nodes", len(index)),
		zap.Int("triangles", m.TriangleCount()))
	fmt.Printf("Exported %d entities (%d triangles) to %s\n", len(index), m.TriangleCount(), out)
	return nil
}

func cmdConfig(args []string) error {
	var output *string
	var save *bool
	_, cfg, err := parse("config", args, 0, "config [-o path] [-save]", func(fs *flag.FlagSet) {
		output = fs.String("o", "", "Write the config to this path")
		save = fs.Bool("save", false, "Write the config to the user config directory")
	})
	if err != nil {
		return err
	}

	switch {
	case *output != "":
		if err := cfg.SaveTo(*output); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", *output)
	case *save:
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	default:
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	}
	return nil
}

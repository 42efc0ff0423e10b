// Package mcp exposes kostore operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/kostore/internal/app"
	"github.com/felixgeelhaar/kostore/internal/domain/install"
)

// VersionInfo contains version metadata for the MCP server.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// InstallPluginInput is the input for the kostore_install_plugin tool.
type InstallPluginInput struct {
	Repositories []string `json:"repositories" jsonschema:"required,description=GitHub repositories in owner/repo form"`
	Update       bool     `json:"update,omitempty" jsonschema:"description=Report the install as an update of an existing plugin"`
	Confirm      bool     `json:"confirm" jsonschema:"required,description=Must be true to write to the install root (safety confirmation)"`
}

// InstallPatchesInput is the input for the kostore_install_patches tool.
type InstallPatchesInput struct {
	Repositories []string `json:"repositories" jsonschema:"required,description=GitHub repositories holding .lua user patches"`
	Confirm      bool     `json:"confirm" jsonschema:"required,description=Must be true to write to the install root (safety confirmation)"`
}

// InstallOutput is the output for both install tools.
type InstallOutput struct {
	Confirmed bool            `json:"confirmed"`
	Results   []InstallResult `json:"results"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// InstallResult is the outcome of one repository.
type InstallResult struct {
	Repository string   `json:"repository"`
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Target     string   `json:"target,omitempty"`
	Files      []string `json:"files,omitempty"`
	Progress   []string `json:"progress,omitempty"`
}

// LocateInput is the input for the kostore_locate tool.
type LocateInput struct {
	Path string `json:"path" jsonschema:"required,description=Directory to search for a plugin root (main.lua and _meta.lua)"`
}

// LocateOutput is the output for the kostore_locate tool.
type LocateOutput struct {
	Found bool   `json:"found"`
	Root  string `json:"root,omitempty"`
	Name  string `json:"name,omitempty"`
}

// StatusInput is the input for the kostore_status tool.
type StatusInput struct{}

// StatusOutput is the output for the kostore_status tool.
type StatusOutput struct {
	Version     string   `json:"version"`
	Commit      string   `json:"commit,omitempty"`
	BuildDate   string   `json:"build_date,omitempty"`
	InstallRoot string   `json:"install_root"`
	ConfigFile  string   `json:"config_file,omitempty"`
	Plugins     []string `json:"plugins"`
	Patches     []string `json:"patches"`
}

// RegisterAll registers every kostore tool on srv.
func RegisterAll(srv *mcp.Server, k *app.Kostore, versionInfo VersionInfo) {
	registerInstallPluginTool(srv, k)
	registerInstallPatchesTool(srv, k)
	registerLocateTool(srv)
	registerStatusTool(srv, k, versionInfo)
}

func registerInstallPluginTool(srv *mcp.Server, k *app.Kostore) {
	srv.Tool("kostore_install_plugin").
		Description("Download KOReader plugins from GitHub and install them into plugins/{name}.koplugin. Replaces an existing copy. REQUIRES confirm=true.").
		Destructive().
		Handler(func(ctx context.Context, in InstallPluginInput) (*InstallOutput, error) {
			return runInstall(ctx, k, in.Repositories, install.KindPluginBundle, in.Update, in.Confirm)
		})
}

func registerInstallPatchesTool(srv *mcp.Server, k *app.Kostore) {
	srv.Tool("kostore_install_patches").
		Description("Download the .lua user patches of GitHub repositories into patches/, overwriting files with the same name. REQUIRES confirm=true.").
		Destructive().
		Handler(func(ctx context.Context, in InstallPatchesInput) (*InstallOutput, error) {
			return runInstall(ctx, k, in.Repositories, install.KindPatchSet, false, in.Confirm)
		})
}

func registerLocateTool(srv *mcp.Server) {
	srv.Tool("kostore_locate").
		Description("Find the plugin root inside a local directory and the folder name it would be installed as.").
		ReadOnly().
		Handler(func(_ context.Context, in LocateInput) (*LocateOutput, error) {
			if in.Path == "" {
				return nil, fmt.Errorf("path is required")
			}
			root, name, err := app.Locate(in.Path)
			if errors.Is(err, app.ErrNotPluginDir) {
				return &LocateOutput{Found: false}, nil
			}
			if err != nil {
				return nil, err
			}
			return &LocateOutput{Found: true, Root: root, Name: name}, nil
		})
}

func registerStatusTool(srv *mcp.Server, k *app.Kostore, versionInfo VersionInfo) {
	srv.Tool("kostore_status").
		Description("Show the kostore version, the install root, and the installed plugins and patches.").
		ReadOnly().
		Handler(func(_ context.Context, _ StatusInput) (*StatusOutput, error) {
			inv, err := k.Installed()
			if err != nil {
				return nil, err
			}

			return &StatusOutput{
				Version:     versionInfo.Version,
				Commit:      versionInfo.Commit,
				BuildDate:   versionInfo.BuildDate,
				InstallRoot: k.Config().InstallRoot,
				ConfigFile:  k.Config().Source,
				Plugins:     nonNil(inv.Plugins),
				Patches:     nonNil(inv.Patches),
			}, nil
		})
}

func runInstall(ctx context.Context, k *app.Kostore, refs []string, kind install.Kind, isUpdate, confirm bool) (*InstallOutput, error) {
	reqs, err := k.Requests(refs, kind, isUpdate)
	if err != nil {
		return nil, err
	}
	if !confirm {
		return &InstallOutput{Confirmed: false, Results: []InstallResult{}}, nil
	}

	progress := make([][]string, len(reqs))
	outcomes := k.InstallAll(ctx, reqs, func(i int, msg string) {
		progress[i] = append(progress[i], msg)
	})

	out := &InstallOutput{Confirmed: true, Results: make([]InstallResult, 0, len(outcomes))}
	for i, o := range outcomes {
		res := InstallResult{
			Repository: reqs[i].Package.String(),
			Success:    o.Success,
			Message:    o.Message,
			Target:     o.Target,
			Files:      o.Files,
			Progress:   progress[i],
		}
		if o.Success {
			out.Succeeded++
		} else {
			out.Failed++
			res.ErrorKind = install.KindOf(o.Err).String()
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

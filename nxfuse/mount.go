// Copyright 2026 The Nx Authors
// SPDX-License-Identifier: Apache-2.0

// Package nxfuse exposes an opened Nx archive as a read-only FUSE
// filesystem: directories mirror the forward-slash path components
// recorded in the archive's string pool, and each file is served from
// its fully decompressed content, extracted when it is first opened.
package nxfuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	nx "github.com/Sewer56/sewer56-archives-nx"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Archive is the opened Nx archive to expose. Must be Ready
	// (see nx.Open).
	Archive *nx.Archive

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a logger writing
	// error-level messages to stderr is used.
	Logger *slog.Logger
}

// Mount mounts the archive at the configured mountpoint. The caller
// must call Unmount on the returned Server when done. The mountpoint
// directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("nxfuse: mountpoint is required")
	}
	if options.Archive == nil {
		return nil, fmt.Errorf("nxfuse: archive is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("nxfuse: creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := buildTree(options.Archive)
	root.options = &options

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "nx",
			Name:       "nx",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("nxfuse: mounting at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("nx archive mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// treeDir is a synthetic directory built from path components common
// to a set of archive entries. Its children are populated once, at
// mount time, from the archive's file list — the tree never changes
// after Mount, since Nx archives are immutable.
type treeDir struct {
	gofuse.Inode
	options  *Options
	children map[string]*treeEntry
}

type treeEntry struct {
	dir  *treeDir
	file *nx.FileInfo
}

var _ gofuse.InodeEmbedder = (*treeDir)(nil)
var _ gofuse.NodeOnAdder = (*treeDir)(nil)

// buildTree walks every file's path and constructs the directory tree
// in memory. A name that is both a file and a directory (paths "a" and
// "a/b") is not representable: OnAdd exposes the file, and the
// directory beneath it is unreachable. Pack does not reject such path
// sets.
func buildTree(archive *nx.Archive) *treeDir {
	root := &treeDir{children: make(map[string]*treeEntry)}

	for _, info := range archive.List() {
		info := info
		components := strings.Split(info.Path, "/")
		cursor := root
		for i, component := range components {
			isLeaf := i == len(components)-1
			entry, ok := cursor.children[component]
			if !ok {
				entry = &treeEntry{}
				cursor.children[component] = entry
			}
			if isLeaf {
				entry.file = &info
				continue
			}
			if entry.dir == nil {
				entry.dir = &treeDir{children: make(map[string]*treeEntry)}
			}
			cursor = entry.dir
		}
	}
	return root
}

func (d *treeDir) OnAdd(ctx context.Context) {
	for name, entry := range d.children {
		if entry.file != nil {
			node := &fileNode{options: d.options, info: *entry.file}
			child := d.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
			d.AddChild(name, child, true)
			continue
		}
		entry.dir.options = d.options
		child := d.NewPersistentInode(ctx, entry.dir, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		d.AddChild(name, child, true)
	}
}

// fileNode represents one archive file as a regular, read-only file.
// Content is decompressed in full on first Open and cached for the
// life of the node, matching Nx's whole-file-or-whole-chunk
// decompression contract — there is no partial-block streaming path.
type fileNode struct {
	gofuse.Inode
	options *Options
	info    nx.FileInfo

	mu      sync.Mutex
	content []byte
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)

func (f *fileNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(f.info.Size)
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	if err := f.ensureContent(); err != nil {
		f.options.Logger.Error("extracting file for FUSE read", "path", f.info.Path, "error", err)
		return nil, 0, syscall.EIO
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fileNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if err := f.ensureContent(); err != nil {
		return nil, syscall.EIO
	}
	if off < 0 || off >= int64(len(f.content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(f.content)) {
		end = int64(len(f.content))
	}
	return fuse.ReadResultData(f.content[off:end]), 0
}

func (f *fileNode) ensureContent() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.content != nil {
		return nil
	}
	data, err := f.options.Archive.Extract(f.info)
	if err != nil {
		return err
	}
	f.content = data
	return nil
}

// vaultfs is a small CLI exposing the encrypted filesystem facade: it opens
// a vault from the configured root and master key, then runs a single
// subcommand against it (ls, stat, mkdir, mknod, cat, write, rm, rmdir, mv,
// symlink, readlink, mirror-push, mirror-pull, mirror-list).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ag0st/cryptovault/api"
	"github.com/ag0st/cryptovault/config"
	"github.com/ag0st/cryptovault/errs"
	"github.com/ag0st/cryptovault/vault"
	"github.com/ag0st/cryptovault/vaultfs"
)

var log = logrus.WithField("component", "cmd/vaultfs")

// init parses the configuration the same way the teacher's HTTP service
// does: a -config flag, overridden by the CONFIG_FILE environment variable.
func init() {
	cfgPath, err := config.ParseFlags()
	if err != nil {
		logrus.Fatal(err)
	}
	if _, err := config.NewConfig(cfgPath); err != nil {
		logrus.Fatal(err)
	}
}

// commandFunc mirrors the teacher's handlerWithErrorFunc: a unit of work
// that reports its own error instead of writing directly to an
// http.ResponseWriter.
type commandFunc func(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error

var commands = map[string]commandFunc{
	"ls":          cmdLs,
	"stat":        cmdStat,
	"mkdir":       cmdMkdir,
	"mknod":       cmdMknod,
	"symlink":     cmdSymlink,
	"readlink":    cmdReadlink,
	"cat":         cmdCat,
	"write":       cmdWrite,
	"rm":          cmdRm,
	"rmdir":       cmdRmdir,
	"mv":          cmdMv,
	"mirror-push": cmdMirrorPush,
	"mirror-pull": cmdMirrorPull,
	"mirror-list": cmdMirrorList,
}

func main() {
	args := flag.Args()
	if len(args) == 0 {
		logrus.Fatal("usage: vaultfs [-config path] <command> [args...]")
	}
	cmd, cmdArgs := args[0], args[1:]
	fn, ok := commands[cmd]
	if !ok {
		logrus.Fatalf("unknown command %q", cmd)
	}

	cfg := config.GetCurrent().Vault()
	fs, err := vaultfs.Open(cfg.Path(), vaultfs.VaultConfig{
		Format:              vaultfs.VaultFormat,
		CipherCombo:         cfg.CipherCombo(),
		ShorteningThreshold: cfg.ShorteningThreshold(),
	}, cfg.Key())
	if err != nil {
		logrus.Fatal(err)
	}

	if err := fn(context.Background(), fs, cmdArgs); err != nil {
		log.WithField("command", cmd).Error(err)
		collapsed := errs.Collaps(err)
		os.Stderr.WriteString(collapsed.Error())
		os.Exit(1)
	}
}

func cmdLs(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: ls <path>")
	}
	entries, err := fs.DirEntries(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(api.DirEntryItemFromVault(entries))
}

func cmdStat(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: stat <path>")
	}
	entry, err := fs.DirEntry(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(api.DirEntryItemFromVault([]vaultfs.DirEntry{entry})[0])
}

func cmdMkdir(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 2 {
		return errs.New("usage: mkdir <parent> <name>")
	}
	return fs.Mkdir(ctx, args[0], args[1], 0o755)
}

func cmdMknod(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 2 {
		return errs.New("usage: mknod <parent> <name>")
	}
	return fs.Mknod(ctx, args[0], args[1], 0o644)
}

func cmdSymlink(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 3 {
		return errs.New("usage: symlink <parent> <name> <target>")
	}
	return fs.Symlink(ctx, args[0], args[1], args[2])
}

func cmdReadlink(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: readlink <path>")
	}
	target, err := fs.LinkTarget(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(target)
	return nil
}

func cmdCat(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: cat <path>")
	}
	h, err := fs.OpenFile(ctx, args[0], false, false)
	if err != nil {
		return err
	}
	defer h.Close()
	_, err = io.Copy(os.Stdout, readerFunc(h.Read))
	return err
}

func cmdWrite(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: write <path> (reads stdin)")
	}
	h, err := fs.OpenFile(ctx, args[0], true, false)
	if err != nil {
		return err
	}
	defer h.Close()
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errs.WrapKind(err, errs.KindIo, "cannot read stdin")
	}
	if err := h.Truncate(0); err != nil {
		return err
	}
	_, err = h.Write(data)
	return err
}

func cmdRm(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: rm <path>")
	}
	return fs.Unlink(ctx, args[0])
}

func cmdRmdir(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 1 {
		return errs.New("usage: rmdir <path>")
	}
	return fs.Rmdir(ctx, args[0])
}

func cmdMv(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	if len(args) != 4 {
		return errs.New("usage: mv <old_parent> <old_name> <new_parent> <new_name>")
	}
	return fs.Rename(ctx, args[0], args[1], args[2], args[3])
}

func cmdMirrorPush(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	mc := config.GetCurrent().Mirror()
	if !mc.Enabled() {
		return errs.New("mirror is not enabled in configuration")
	}
	conn, err := vault.Connect(mc.Endpoint(), mc.AccessKey(), mc.SecretKey(), mc.UseSSL())
	if err != nil {
		return err
	}
	if err := conn.EnsureBucket(ctx, mc.Bucket()); err != nil {
		return err
	}
	return conn.PushTree(ctx, config.GetCurrent().Vault().Path(), mc.ChunkSize(), mc.Bucket())
}

func cmdMirrorPull(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	mc := config.GetCurrent().Mirror()
	if !mc.Enabled() {
		return errs.New("mirror is not enabled in configuration")
	}
	conn, err := vault.Connect(mc.Endpoint(), mc.AccessKey(), mc.SecretKey(), mc.UseSSL())
	if err != nil {
		return err
	}
	return conn.PullTree(ctx, mc.Bucket(), config.GetCurrent().Vault().Path())
}

func cmdMirrorList(ctx context.Context, fs *vaultfs.EncryptedFileSystem, args []string) error {
	mc := config.GetCurrent().Mirror()
	if !mc.Enabled() {
		return errs.New("mirror is not enabled in configuration")
	}
	conn, err := vault.Connect(mc.Endpoint(), mc.AccessKey(), mc.SecretKey(), mc.UseSSL())
	if err != nil {
		return err
	}
	objects, err := conn.ListBlobs(ctx, mc.Bucket())
	if err != nil {
		return err
	}
	return printJSON(api.MirrorBlobItemFromMinio(objects))
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.WrapKind(err, errs.KindIo, "cannot marshal output")
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

// readerFunc adapts a Read method value to io.Reader for io.Copy.
type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio"
	jsoniter "github.com/json-iterator/go"
	"github.com/karrick/godirwalk"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
	"golang.org/x/sync/errgroup"

	"github.com/ke4ahr/pacsatd/internal/cos"
	"github.com/ke4ahr/pacsatd/internal/debug"
	"github.com/ke4ahr/pacsatd/internal/fname"
	"github.com/ke4ahr/pacsatd/internal/nlog"
	"github.com/ke4ahr/pacsatd/pfh"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrKind values surfaced to callers; store I/O errors wrap an underlying
// cause via github.com/pkg/errors so %+v retains a stack at the fault.
type ErrKind string

func (e ErrKind) Error() string { return string(e) }

const (
	ErrIoFailure        ErrKind = "store: io failure"
	ErrIndexFailure     ErrKind = "store: index failure"
	ErrNotFound         ErrKind = "store: not found"
	ErrPermissionDenied ErrKind = "store: permission denied"
)

const indexKeyPrefix = "file:"

// Store is the content-addressed on-disk tree plus its buntdb index. One
// reentrant lock covers index mutation; filesystem writes happen outside
// the lock once a file number is reserved.
type Store struct {
	root           string
	trashRetention time.Duration

	mu     sync.Mutex // covers counter + index mutation (small critical section)
	db     *buntdb.DB
	nextFN uint32

	archiver Archiver // optional cold-archive step ahead of trash purge; nil disables it
}

// SetArchiver installs the cold-archive step PurgeTrash runs on each entry
// just before unlinking it. Passing nil disables cold-archiving (the
// default), so BulkCleanup/PurgeTrash just unlink expired trash.
func (s *Store) SetArchiver(a Archiver) { s.archiver = a }

// Open opens (creating if absent) the store rooted at root, with the given
// soft-delete trash retention.
func Open(root string, trashRetention time.Duration) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, string(ErrIoFailure))
	}
	if err := os.MkdirAll(filepath.Join(root, fname.TrashDir), 0o755); err != nil {
		return nil, errors.Wrap(err, string(ErrIoFailure))
	}
	db, err := buntdb.Open(filepath.Join(root, fname.IndexDB))
	if err != nil {
		return nil, errors.Wrap(err, string(ErrIndexFailure))
	}

	s := &Store{root: root, trashRetention: trashRetention, db: db}
	if err := s.loadCounter(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) loadCounter() error {
	var max uint32
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(indexKeyPrefix+"*", func(key, val string) bool {
			var r Record
			if jerr := json.UnmarshalFromString(val, &r); jerr == nil && r.FileNum > max {
				max = r.FileNum
			}
			return true
		})
	})
	if err != nil && err != buntdb.ErrNotFound {
		return errors.Wrap(err, string(ErrIndexFailure))
	}
	s.nextFN = max + 1
	return nil
}

// AddFile allocates the next file number under the store lock, stamps it
// into pfh (overriding whatever was present), writes header‖body to a
// sibling .tmp file and renames into place, then inserts the index row.
// Any failure leaves no index entry and no visible file.
func (s *Store) AddFile(callsign string, p pfh.PFH, body []byte) (uint32, error) {
	s.mu.Lock()
	fn := s.nextFN
	s.nextFN++
	s.mu.Unlock()

	return fn, s.commit(fn, callsign, p, body)
}

// CommitAt writes body under the store's own numbering space at a
// caller-supplied file number, as used by the FTL0 upload engine: the
// session's file number (reserved when the upload began) is also the
// final stored file number. The store's monotonic counter is advanced
// past fn so later AddFile calls never collide with it.
func (s *Store) CommitAt(fn uint32, callsign string, p pfh.PFH, body []byte) error {
	s.mu.Lock()
	if _, err := s.getRecordLocked(fn); err == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: file %d already exists", ErrIndexFailure, fn)
	}
	if fn >= s.nextFN {
		s.nextFN = fn + 1
	}
	s.mu.Unlock()

	return s.commit(fn, callsign, p, body)
}

func (s *Store) getRecordLocked(fn uint32) (Record, error) { return s.getRecord(fn) }

func (s *Store) commit(fn uint32, callsign string, p pfh.PFH, body []byte) error {
	p.FileNum = fn
	p.BodySize = uint32(len(body))
	p.UploadTime = uint32(time.Now().Unix())
	if p.CreateTime == 0 {
		p.CreateTime = p.UploadTime
	}

	wireBody := body
	if p.Compression == 2 {
		var buf bytes.Buffer
		fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		if _, err := fw.Write(body); err != nil {
			return errors.Wrap(err, string(ErrIoFailure))
		}
		fw.Close()
		wireBody = buf.Bytes()
		p.BodySize = uint32(len(body)) // BodySize always reflects the uncompressed body
	}

	// body_offset is only knowable once the header is serialized once with a
	// placeholder, since it depends on the header's own size.
	placeholder := p
	placeholder.BodyOffset = 0xFFFF
	hdr, err := pfh.Encode(placeholder)
	if err != nil {
		return err
	}
	p.BodyOffset = uint16(len(hdr))
	hdr, err = pfh.Encode(p)
	if err != nil {
		return err
	}
	debug.Assert(int(p.BodyOffset) == len(hdr))

	path := s.artifactPath(p.Name, fn)
	if err := writeAtomic(path, hdr, wireBody); err != nil {
		return errors.Wrap(err, string(ErrIoFailure))
	}

	rec := Record{
		FileNum:         fn,
		Filename:        strings.TrimSpace(p.Name) + "." + strings.TrimSpace(p.Ext),
		Callsign:        callsign,
		UploadTime:      int64(p.UploadTime),
		Size:            p.BodySize,
		Path:            path,
		CompressionType: p.Compression,
		Description:     p.Description,
		Priority:        p.Priority,
		Forwarding:      p.Forwarding,
	}
	if err := s.putRecord(rec); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// artifactPath computes root/<l1>/<l2>/<l3>/<l4>/<file_num:08x>.bin where
// l1..l4 are the 1..4-char lowercase prefixes of the base name.
func (s *Store) artifactPath(name string, fn uint32) string {
	base := strings.ToLower(strings.TrimSpace(name))
	parts := make([]string, 0, 4)
	for n := 1; n <= 4 && n <= len(base); n++ {
		parts = append(parts, base[:n])
	}
	if len(parts) == 0 {
		parts = []string{"_"}
	}
	dir := filepath.Join(append([]string{s.root}, parts...)...)
	return filepath.Join(dir, fmt.Sprintf("%08x%s", fn, fname.BinExt))
}

// writeAtomic writes hdr‖body to a sibling .tmp file (via renameio, so the
// temp name and fsync discipline are consistent with the rest of the
// PendingFile contract) and renames it into place; rename is atomic on
// POSIX, so a crash never leaves a half-written artifact visible under
// path.
func writeAtomic(path string, hdr, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if _, err := t.Write(hdr); err != nil {
		return err
	}
	if _, err := t.Write(body); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

func indexKey(fn uint32) string { return fmt.Sprintf("%s%08x", indexKeyPrefix, fn) }

func (s *Store) putRecord(rec Record) error {
	blob, err := json.MarshalToString(rec)
	if err != nil {
		return errors.Wrap(err, string(ErrIndexFailure))
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(indexKey(rec.FileNum), blob, nil)
		return err
	})
	if err != nil {
		return errors.Wrap(err, string(ErrIndexFailure))
	}
	return nil
}

// GetPath returns the on-disk path of fn, or ErrNotFound.
func (s *Store) GetPath(fn uint32) (string, error) {
	rec, err := s.getRecord(fn)
	if err != nil {
		return "", err
	}
	return rec.Path, nil
}

// Open opens the on-disk artifact for reading. The returned bytes are the
// literal header‖body wire encoding: a compression_type=2 body is still
// deflated here, so callers that need the original body must go through
// ReadBody instead of decoding Open's bytes directly.
func (s *Store) Open(fn uint32) (io.ReadCloser, error) {
	path, err := s.GetPath(fn)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, string(ErrIoFailure))
	}
	return f, nil
}

// ReadBody opens fn, decodes its header, and returns the header alongside
// the body in its original form: a compression_type=2 body is inflated
// here, so every caller sees bytes matching PFH.BodySize instead of the
// on-disk wire length. This is the one place that needs to know about
// compression; ftl0's download engine and the broadcast chunker both read
// through it rather than decoding Open's raw bytes themselves.
func (s *Store) ReadBody(fn uint32) (pfh.PFH, []byte, error) {
	rc, err := s.Open(fn)
	if err != nil {
		return pfh.PFH{}, nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return pfh.PFH{}, nil, errors.Wrap(err, string(ErrIoFailure))
	}
	hdr, err := pfh.Decode(raw)
	if err != nil {
		return pfh.PFH{}, nil, err
	}
	wireBody := raw[hdr.BodyOffset:]
	if hdr.Compression != 2 {
		return hdr, wireBody, nil
	}

	fr := flate.NewReader(bytes.NewReader(wireBody))
	defer fr.Close()
	body, err := io.ReadAll(fr)
	if err != nil {
		return pfh.PFH{}, nil, errors.Wrap(err, string(ErrIoFailure))
	}
	return hdr, body, nil
}

func (s *Store) getRecord(fn uint32) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(indexKey(fn))
		if err != nil {
			return err
		}
		return json.UnmarshalFromString(val, &rec)
	})
	if err == buntdb.ErrNotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrap(err, string(ErrIndexFailure))
	}
	return rec, nil
}

// List returns all live records, newest-upload-first, ties broken by
// descending file number.
func (s *Store) List() ([]Record, error) {
	recs, err := s.allRecords()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(recs)
	return recs, nil
}

func (s *Store) allRecords() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(indexKeyPrefix+"*", func(key, val string) bool {
			var r Record
			if jerr := json.UnmarshalFromString(val, &r); jerr == nil {
				recs = append(recs, r)
			}
			return true
		})
	})
	if err != nil && err != buntdb.ErrNotFound {
		return nil, errors.Wrap(err, string(ErrIndexFailure))
	}
	return recs, nil
}

func sortNewestFirst(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UploadTime != recs[j].UploadTime {
			return recs[i].UploadTime > recs[j].UploadTime
		}
		return recs[i].FileNum > recs[j].FileNum
	})
}

// Delete removes fn. Permanent deletion unlinks the artifact; soft deletion
// renames it into <root>/.trash/<fn>_<epoch>_<basename> (an underscore, not
// a dot, separates the epoch from the artifact's base name) and best-effort
// prunes now-empty ancestor subdirectories. Either way the index row is
// removed.
func (s *Store) Delete(fn uint32, permanent bool) error {
	rec, err := s.getRecord(fn)
	if err != nil {
		return err
	}

	if permanent {
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, string(ErrIoFailure))
		}
	} else {
		if err := s.moveToTrash(rec); err != nil {
			return err
		}
	}

	if err := s.removeRecord(fn); err != nil {
		return err
	}
	if !permanent {
		pruneEmptyAncestors(filepath.Dir(rec.Path), s.root)
	}
	return nil
}

func (s *Store) moveToTrash(rec Record) error {
	base := filepath.Base(rec.Path)
	dst := filepath.Join(s.root, fname.TrashDir, fmt.Sprintf("%d_%d_%s", rec.FileNum, time.Now().Unix(), base))
	if err := os.Rename(rec.Path, dst); err != nil {
		if os.IsNotExist(err) {
			return nil // already gone; index row still gets dropped
		}
		return errors.Wrap(err, string(ErrIoFailure))
	}
	if err := s.writeTrashMeta(dst, rec); err != nil {
		nlog.Warningf("store: trash metadata for file %d: %v", rec.FileNum, err)
	}
	return nil
}

// trashMetaPath returns the sidecar path for a trashed artifact. Sidecars
// live in <root>/.trash-meta/, next to .trash, so .trash itself holds only
// artifacts.
func trashMetaPath(artifactPath string) string {
	root := filepath.Dir(filepath.Dir(artifactPath))
	return filepath.Join(root, fname.TrashDir+"-meta", filepath.Base(artifactPath)+fname.MetaExt)
}

// writeTrashMeta persists rec in a sidecar for its trashed artifact so
// Recover can restore full fidelity (callsign, download count, forwarding
// list) that the artifact's own PFH header cannot carry.
func (s *Store) writeTrashMeta(artifactPath string, rec Record) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, string(ErrIndexFailure))
	}
	metaPath := trashMetaPath(artifactPath)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return errors.Wrap(err, string(ErrIoFailure))
	}
	return os.WriteFile(metaPath, blob, 0o644)
}

func readTrashMeta(artifactPath string) (Record, bool) {
	blob, err := os.ReadFile(trashMetaPath(artifactPath))
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// reconstructRecordFromArtifact rebuilds a Record from a trashed artifact's
// own PFH header when its sidecar is missing; callsign, download count and
// forwarding are lost in that case since the header carries none of them.
func reconstructRecordFromArtifact(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Record{}, errors.Wrap(err, string(ErrIoFailure))
	}
	hdr, err := pfh.Decode(raw)
	if err != nil {
		return Record{}, err
	}
	return Record{
		FileNum:         hdr.FileNum,
		Filename:        strings.TrimSpace(hdr.Name) + "." + strings.TrimSpace(hdr.Ext),
		UploadTime:      int64(hdr.UploadTime),
		Size:            hdr.BodySize,
		CompressionType: hdr.Compression,
		Description:     hdr.Description,
		Priority:        hdr.Priority,
		Forwarding:      hdr.Forwarding,
	}, nil
}

func (s *Store) removeRecord(fn uint32) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(indexKey(fn))
		return err
	})
	if err != nil && err != buntdb.ErrNotFound {
		return errors.Wrap(err, string(ErrIndexFailure))
	}
	return nil
}

// pruneEmptyAncestors removes dir and its ancestors up to (but not
// including) root, as long as each is empty. ENOTEMPTY races against
// concurrent writers are tolerated: a non-empty directory simply stops
// the climb.
func pruneEmptyAncestors(dir, root string) {
	for dir != root && strings.HasPrefix(dir, root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// IncrementDownloadCount atomically bumps fn's download counter.
func (s *Store) IncrementDownloadCount(fn uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.getRecord(fn)
	if err != nil {
		return err
	}
	rec.DownloadCount++
	return s.putRecord(rec)
}

// Search performs a full-text search over (filename, callsign,
// description), ranked by token-overlap relevance via xxhash-digested
// tokens, ties broken newest-first.
func (s *Store) Search(text string) ([]Record, error) {
	recs, err := s.allRecords()
	if err != nil {
		return nil, err
	}
	needles := tokenDigests(text)
	if len(needles) == 0 {
		return nil, nil
	}

	type scored struct {
		rec   Record
		score int
	}
	var hits []scored
	for _, r := range recs {
		hay := tokenDigests(r.Filename + " " + r.Callsign + " " + r.Description)
		score := 0
		for n := range needles {
			if _, ok := hay[n]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{r, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].rec.UploadTime != hits[j].rec.UploadTime {
			return hits[i].rec.UploadTime > hits[j].rec.UploadTime
		}
		return hits[i].rec.FileNum > hits[j].rec.FileNum
	})
	out := make([]Record, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

func tokenDigests(s string) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[cos.ShardDigest([]byte(tok))] = struct{}{}
	}
	return out
}

//
// housekeeping expansions: trash listing/recovery/purge, bulk cleanup, info
//

// TrashEntry describes one artifact sitting in .trash.
type TrashEntry struct {
	Name        string
	DeletedUnix int64
	Size        int64
}

// ListTrash enumerates .trash contents, oldest-deleted-first.
func (s *Store) ListTrash() ([]TrashEntry, error) {
	dir := filepath.Join(s.root, fname.TrashDir)
	var out []TrashEntry
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == dir || de.IsDir() || strings.HasSuffix(path, fname.MetaExt) {
				return nil
			}
			info, err := os.Stat(path)
			if err != nil {
				return nil //nolint:nilerr // best-effort listing
			}
			out = append(out, TrashEntry{
				Name:        filepath.Base(path),
				DeletedUnix: deletedTimeFromName(filepath.Base(path)),
				Size:        info.Size(),
			})
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, string(ErrIoFailure))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedUnix < out[j].DeletedUnix })
	return out, nil
}

func deletedTimeFromName(name string) int64 {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 2 {
		return 0
	}
	t, _ := strconv.ParseInt(parts[1], 10, 64)
	return t
}

// purgeConcurrency bounds how many trash entries PurgeTrash unlinks at
// once; trash directories can grow large and the removals are independent.
const purgeConcurrency = 8

// PurgeTrash permanently deletes trash entries older than retention.
func (s *Store) PurgeTrash() (purged int, err error) {
	entries, err := s.ListTrash()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.trashRetention).Unix()
	dir := filepath.Join(s.root, fname.TrashDir)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(purgeConcurrency)
	for _, e := range entries {
		if e.DeletedUnix > cutoff {
			continue
		}
		e := e
		g.Go(func() error {
			path := filepath.Join(dir, e.Name)
			if s.archiver != nil {
				if arErr := s.archiver.Archive(context.Background(), e.Name, path); arErr != nil {
					nlog.Warningf("store: cold-archive trash entry %q: %v", e.Name, arErr)
					return nil
				}
			}
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				nlog.Warningf("store: purge trash entry %q: %v", e.Name, rmErr)
				return nil
			}
			os.Remove(trashMetaPath(path)) // best-effort; absent for pre-sidecar trash
			mu.Lock()
			purged++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // Go funcs above never return a non-nil error
	return purged, nil
}

// Recover restores fn from trash: it locates the newest trash entry for fn,
// rebuilds its Record from the entry's sidecar (or, if the sidecar is
// missing, from the artifact's own PFH header), moves the artifact back to
// its canonical store path, and reinserts the index row. It fails if fn is
// already live or if another file already occupies the destination path.
func (s *Store) Recover(fn uint32) error {
	if _, err := s.getRecord(fn); err == nil {
		return fmt.Errorf("%w: file %d already live", ErrIndexFailure, fn)
	}

	dir := filepath.Join(s.root, fname.TrashDir)
	prefix := fmt.Sprintf("%d_", fn)
	var newest string
	var newestUnix int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, string(ErrIoFailure))
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || strings.HasSuffix(name, fname.MetaExt) || !strings.HasPrefix(name, prefix) {
			continue
		}
		if t := deletedTimeFromName(name); newest == "" || t > newestUnix {
			newest, newestUnix = name, t
		}
	}
	if newest == "" {
		return ErrNotFound
	}

	trashPath := filepath.Join(dir, newest)
	rec, ok := readTrashMeta(trashPath)
	if !ok {
		rec, err = reconstructRecordFromArtifact(trashPath)
		if err != nil {
			return err
		}
	}

	dst := s.artifactPath(artifactBaseName(rec.Filename), fn)
	if _, statErr := os.Stat(dst); statErr == nil {
		return fmt.Errorf("%w: recovery path %q already occupied", ErrIoFailure, dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, string(ErrIoFailure))
	}
	if err := os.Rename(trashPath, dst); err != nil {
		return errors.Wrap(err, string(ErrIoFailure))
	}
	os.Remove(trashMetaPath(trashPath))

	rec.FileNum = fn
	rec.Path = dst
	if err := s.putRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	if fn >= s.nextFN {
		s.nextFN = fn + 1
	}
	s.mu.Unlock()
	return nil
}

// artifactBaseName strips the trailing ".<ext>" from a Record's Filename
// (the stored "<name>.<ext>" form), reversing what commit's path computation
// trims — artifactPath shards on the bare name only.
func artifactBaseName(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[:i]
	}
	return filename
}

// Report summarizes one BulkCleanup pass.
type Report struct {
	SoftDeleted int // files moved to trash for exceeding maxFiles/maxAgeDays
	Purged      int // expired trash entries permanently removed
}

// BulkCleanup mirrors the periodic housekeeping pass: of all live files,
// the maxFiles most-recently-uploaded are always kept; among the rest, any
// file older than maxAgeDays is soft-deleted. It then runs PurgeTrash to
// permanently remove (or cold-archive) trash past its retention window.
// maxFiles <= 0 disables the keep-most-recent floor; maxAgeDays <= 0
// disables the age-based pass entirely.
func (s *Store) BulkCleanup(maxAgeDays, maxFiles int) (Report, error) {
	var rep Report

	if maxAgeDays > 0 {
		recs, err := s.List() // newest-first
		if err != nil {
			return rep, err
		}
		if maxFiles > 0 && maxFiles < len(recs) {
			recs = recs[maxFiles:]
		} else if maxFiles > 0 {
			recs = nil
		}
		cutoff := time.Now().AddDate(0, 0, -maxAgeDays).Unix()
		for _, r := range recs {
			if r.UploadTime > cutoff {
				continue
			}
			if err := s.Delete(r.FileNum, false); err != nil {
				nlog.Warningf("store: bulk cleanup soft-delete file %d: %v", r.FileNum, err)
				continue
			}
			rep.SoftDeleted++
		}
	}

	purged, err := s.PurgeTrash()
	if err != nil {
		return rep, err
	}
	rep.Purged = purged
	if rep.SoftDeleted > 0 || rep.Purged > 0 {
		nlog.Infof("store: bulk cleanup soft-deleted %d, purged %d expired trash entries", rep.SoftDeleted, rep.Purged)
	}
	return rep, nil
}

// Stats summarizes store occupancy for operators.
type Stats struct {
	LiveFiles  int
	TrashFiles int
	TotalBytes int64
}

// GetStats aggregates live/trash file counts and total live byte occupancy.
func (s *Store) GetStats() (Stats, error) {
	recs, err := s.allRecords()
	if err != nil {
		return Stats{}, err
	}
	trash, err := s.ListTrash()
	if err != nil {
		return Stats{}, err
	}
	var total int64
	for _, r := range recs {
		total += int64(r.Size)
	}
	return Stats{LiveFiles: len(recs), TrashFiles: len(trash), TotalBytes: total}, nil
}

// GetInfo looks up the single live record for fn without walking the full
// index. It reports ok=false if fn has no live record.
func (s *Store) GetInfo(fn uint32) (Record, bool) {
	rec, err := s.getRecord(fn)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// Package recorder appends throughput samples and route updates to a
// SQLite database for offline analysis.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/routing"
)

type Options struct {
	BatchSize     int           // default 512
	FlushInterval time.Duration // default 1s
}

type trxRow struct {
	at     int64
	node   int
	tx, rx int
}

type routeRow struct {
	at      int64
	node    int
	version uint64
	table   string
	edges   string
}

// Recorder buffers rows in memory and writes them in one transaction per
// flush. Flushes happen when a batch fills, on a timer, on Close, and at
// process exit.
type Recorder struct {
	db        *sql.DB
	path      string
	runID     xid.ID
	trxStmt   *sql.Stmt
	routeStmt *sql.Stmt
	opts      Options

	mu     sync.Mutex
	trx    []trxRow
	routes []routeRow
	closed bool

	// flushMu orders flushes with each other and with closing the database.
	flushMu sync.Mutex

	stop      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
	now       func() time.Time
}

// Open creates or reuses the database at path. An empty path picks a fresh
// "avsync_<id>.sqlite3" in the working directory.
func Open(path string, opts Options) (*Recorder, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 512
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	runID := xid.New()
	if path == "" {
		path = "avsync_" + runID.String() + ".sqlite3"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	r := &Recorder{db: db, path: path, runID: runID, opts: opts, stop: make(chan struct{}), now: time.Now}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	r.wg.Add(1)
	go r.loop()
	atexit.Register(func() { _ = r.Close() })
	zap.L().Info("recording to sqlite", zap.String("path", path), zap.Stringer("run", runID))
	return r, nil
}

func (r *Recorder) init() error {
	stmts := []string{
		`create table if not exists runs
		(
			run_id     varchar(20) primary key,
			started_at integer not null
		)`,
		`create table if not exists trx
		(
			run_id varchar(20) not null,
			at     integer     not null,
			node   integer     not null,
			tx     integer     not null,
			rx     integer     not null
		)`,
		`create index if not exists trx_node_index on trx (run_id, node)`,
		`create table if not exists routes
		(
			run_id  varchar(20) not null,
			at      integer     not null,
			node    integer     not null,
			version integer     not null,
			route_table text    not null,
			edges   text        not null
		)`,
		`create index if not exists routes_node_index on routes (run_id, node)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := r.db.Exec(`insert into runs (run_id, started_at) values (?, ?)`,
		r.runID.String(), r.now().UnixMilli()); err != nil {
		return fmt.Errorf("register run: %w", err)
	}

	var err error
	r.trxStmt, err = r.db.Prepare(`insert into trx (run_id, at, node, tx, rx) values (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	r.routeStmt, err = r.db.Prepare(`insert into routes (run_id, at, node, version, route_table, edges) values (?, ?, ?, ?, ?, ?)`)
	return err
}

// RunID identifies this process's rows.
func (r *Recorder) RunID() string { return r.runID.String() }

func (r *Recorder) Path() string { return r.path }

// HandleTRx buffers a throughput sample.
func (r *Recorder) HandleTRx(s protocol.TRx) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.trx = append(r.trx, trxRow{at: r.now().UnixMilli(), node: s.Node, tx: s.Tx, rx: s.Rx})
	full := len(r.trx)+len(r.routes) >= r.opts.BatchSize
	r.mu.Unlock()
	if full {
		r.flushLogged()
	}
}

// RouteUpdated buffers a routing snapshot with its edge list.
func (r *Recorder) RouteUpdated(snap routing.Snapshot) {
	table, err := json.Marshal(snap.Table)
	if err != nil {
		zap.L().Warn("encode route table", zap.Error(err))
		return
	}
	edges, err := json.Marshal(snap.Edges)
	if err != nil {
		zap.L().Warn("encode edge list", zap.Error(err))
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.routes = append(r.routes, routeRow{
		at: r.now().UnixMilli(), node: snap.Node, version: snap.Version,
		table: string(table), edges: string(edges),
	})
	full := len(r.trx)+len(r.routes) >= r.opts.BatchSize
	r.mu.Unlock()
	if full {
		r.flushLogged()
	}
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	t := time.NewTicker(r.opts.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.flushLogged()
		}
	}
}

func (r *Recorder) flushLogged() {
	if err := r.Flush(); err != nil {
		zap.L().Error("recorder flush failed", zap.Error(err))
	}
}

// Flush writes all buffered rows in a single transaction.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()
	return r.flushLocked()
}

// flushLocked drains the buffers. Once Close has run they stay empty, so the
// closed database is never touched.
func (r *Recorder) flushLocked() error {
	r.mu.Lock()
	trx, routes := r.trx, r.routes
	r.trx, r.routes = nil, nil
	r.mu.Unlock()
	if len(trx)+len(routes) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	run := r.runID.String()
	for _, row := range trx {
		if _, err := tx.Stmt(r.trxStmt).Exec(run, row.at, row.node, row.tx, row.rx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert trx: %w", err)
		}
	}
	for _, row := range routes {
		if _, err := tx.Stmt(r.routeStmt).Exec(run, row.at, row.node, row.version, row.table, row.edges); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert route: %w", err)
		}
	}
	return tx.Commit()
}

// Close stops accepting rows, flushes what is buffered and closes the
// database. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.flushMu.Lock()
		defer r.flushMu.Unlock()
		err := r.flushLocked()
		_ = r.trxStmt.Close()
		_ = r.routeStmt.Close()
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
		r.closeErr = err
	})
	return r.closeErr
}

// Counts reports how many rows this run has written.
func (r *Recorder) Counts(ctx context.Context) (trx, routes int, err error) {
	run := r.runID.String()
	if err = r.db.QueryRowContext(ctx, `select count(*) from trx where run_id = ?`, run).Scan(&trx); err != nil {
		return
	}
	err = r.db.QueryRowContext(ctx, `select count(*) from routes where run_id = ?`, run).Scan(&routes)
	return
}

// Package postgresql implements the source.Client contract over
// PostgreSQL logical replication, using the wal2json output plugin
// instead of the built-in pgoutput protocol: wal2json emits the row
// mutation as plain JSON, so the decode side (internal/ingest.Decode)
// never touches pgoutput's binary tuple encoding.
package postgresql

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/rs/zerolog/log"

	"github.com/jfoltran/intake/internal/ingest"
	"github.com/jfoltran/intake/internal/source"
	"github.com/jfoltran/intake/internal/state"
)

func init() {
	source.Register("postgresql", func(cfg source.Config) (source.Client, error) {
		c := New(cfg.URL, cfg.SlotName, cfg.State)
		c.onLatestLSN = cfg.OnLatestLSN
		return c, nil
	})
}

// unixToPg2000Micros is the offset between the Unix epoch and
// 2000-01-01 00:00:00 UTC, the epoch PostgreSQL's replication protocol
// uses for its timestamp fields.
const unixToPg2000Micros = 946_684_800 * 1_000_000

// Client streams wal2json row mutations from a single replication slot.
type Client struct {
	connString  string
	slotName    string
	state       *state.Store
	onLatestLSN func(pglogrepl.LSN)
}

// New returns a Client for the given connection string and slot name.
// slotName has hyphens replaced with underscores since PostgreSQL
// replication slot identifiers don't accept them.
func New(connString, slotName string, st *state.Store) *Client {
	return &Client{
		connString: connString,
		slotName:   strings.ReplaceAll(slotName, "-", "_"),
		state:      st,
	}
}

// Connect opens a replication connection, creates a temporary slot,
// starts streaming at that slot's consistent point (the position held
// in the state store is not used as a start point), and blocks
// decoding XLogData/keepalive frames onto
// sink until ctx is canceled or the connection fails. A non-nil return
// means the connection is gone; callers reconnect by calling Connect
// again with a fresh context (or the same one, if still live).
func (c *Client) Connect(ctx context.Context, sink chan<- ingest.Event) error {
	conn, err := pgconn.Connect(ctx, c.connString)
	if err != nil {
		return fmt.Errorf("postgresql: connect: %w", err)
	}
	defer conn.Close(ctx)

	startLSN, err := c.createSlot(ctx, conn)
	if err != nil {
		return err
	}

	err = pglogrepl.StartReplication(ctx, conn, c.slotName, startLSN, pglogrepl.StartReplicationOptions{
		PluginArgs: []string{
			"\"pretty-print\" '0'",
			"\"include-types\" '1'",
		},
	})
	if err != nil {
		return fmt.Errorf("postgresql: start replication: %w", err)
	}

	return c.receiveLoop(ctx, conn, sink)
}

func (c *Client) createSlot(ctx context.Context, conn *pgconn.PgConn) (pglogrepl.LSN, error) {
	sql := fmt.Sprintf("CREATE_REPLICATION_SLOT %s TEMPORARY LOGICAL wal2json", c.slotName)
	result, err := pglogrepl.ParseCreateReplicationSlot(conn.Exec(ctx, sql))
	if err != nil {
		return 0, fmt.Errorf("postgresql: create replication slot: %w", err)
	}

	lsn, err := pglogrepl.ParseLSN(result.ConsistentPoint)
	if err != nil {
		return 0, fmt.Errorf("postgresql: parse consistent point: %w", err)
	}

	if c.state != nil {
		c.state.SetConsistentPoint(result.ConsistentPoint)
	}

	return lsn, nil
}

func (c *Client) receiveLoop(ctx context.Context, conn *pgconn.PgConn, sink chan<- ingest.Event) error {
	recvTimeout := 2 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		recvCtx, cancel := context.WithDeadline(ctx, time.Now().Add(recvTimeout))
		rawMsg, err := conn.ReceiveMessage(recvCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if pgconn.Timeout(err) {
				continue
			}
			return fmt.Errorf("postgresql: receive message: %w", err)
		}

		if errResp, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return fmt.Errorf("postgresql: server error: %s (SQLSTATE %s)", errResp.Message, errResp.Code)
		}

		copyData, ok := rawMsg.(*pgproto3.CopyData)
		if !ok || len(copyData.Data) == 0 {
			continue
		}

		switch copyData.Data[0] {
		case pglogrepl.XLogDataByteID:
			if err := c.handleXLogData(copyData.Data[1:], sink); err != nil {
				log.Error().Err(err).Msg("postgresql: dropping malformed WAL frame")
			}

		case pglogrepl.PrimaryKeepaliveMessageByteID:
			if err := c.handleKeepalive(ctx, conn, copyData.Data[1:]); err != nil {
				log.Error().Err(err).Msg("postgresql: keepalive reply failed")
			}
		}
	}
}

func (c *Client) handleXLogData(raw []byte, sink chan<- ingest.Event) error {
	xld, err := pglogrepl.ParseXLogData(raw)
	if err != nil {
		return fmt.Errorf("parse xlogdata: %w", err)
	}

	header := walHeader(xld)
	if c.state != nil {
		if err := c.state.Start(header); err != nil {
			return err
		}
	}

	events, err := ingest.Decode(xld.WALData)
	if err != nil {
		return fmt.Errorf("decode mutation: %w", err)
	}

	for _, ev := range events {
		sink <- ev
	}

	if c.state != nil {
		return c.state.Done(header)
	}
	return nil
}

// walHeader reconstructs the 24-byte big-endian header
// (start-LSN/end-LSN/server-time) that internal/state.Store.Start and
// Done parse, from the already-parsed pglogrepl.XLogData fields. The
// clock bytes are Unix-epoch microseconds (xld.ServerTime has already
// been converted by pglogrepl.ParseXLogData), not the raw PostgreSQL
// 2000-01-01-epoch wire value; state.Store never reads those bytes
// back as a timestamp, so the round-trip is lossy but harmless.
func walHeader(xld pglogrepl.XLogData) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], uint64(xld.WALStart))
	binary.BigEndian.PutUint64(buf[8:16], uint64(xld.WALStart)+uint64(len(xld.WALData)))
	binary.BigEndian.PutUint64(buf[16:24], uint64(xld.ServerTime.UnixMicro()))
	return buf
}

func (c *Client) handleKeepalive(ctx context.Context, conn *pgconn.PgConn, raw []byte) error {
	pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(raw)
	if err != nil {
		return fmt.Errorf("parse keepalive: %w", err)
	}
	if c.onLatestLSN != nil {
		c.onLatestLSN(pkm.ServerWALEnd)
	}
	if !pkm.ReplyRequested {
		return nil
	}

	var flushed, applied int64
	if c.state != nil {
		flushed = c.state.LastFlushed()
		applied = c.state.LastApplied()
	}

	frame := statusUpdateFrame(flushed, applied, time.Now())
	if err := conn.Frontend().Send(&pgproto3.CopyData{Data: frame}); err != nil {
		return fmt.Errorf("postgresql: send status update: %w", err)
	}
	return conn.Frontend().Flush()
}

// statusUpdateFrame builds the 34-byte receiver status update frame
// byte-for-byte: type byte 'r', then three big-endian i64 fields that
// are meant to be last-received/last-flushed/last-applied but instead
// carry flushed/flushed/applied (the source protocol this was derived
// from sends last_flushed+1 in the "received" slot too; that anomaly is
// reproduced here deliberately, not fixed, since downstream consumers
// already observe flushed and applied converge in state.Store.Done).
func statusUpdateFrame(flushed, applied int64, now time.Time) []byte {
	buf := make([]byte, 34)
	buf[0] = 'r'
	binary.BigEndian.PutUint64(buf[1:9], uint64(flushed))
	binary.BigEndian.PutUint64(buf[9:17], uint64(flushed))
	binary.BigEndian.PutUint64(buf[17:25], uint64(applied))
	micros := now.UnixMicro() - unixToPg2000Micros
	binary.BigEndian.PutUint64(buf[25:33], uint64(micros))
	buf[33] = 0x01
	return buf
}

package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS books (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	author            TEXT NOT NULL DEFAULT '',
	total_pages       INTEGER NOT NULL,
	structure_source  TEXT NOT NULL,
	processing_status TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	last_read_at      INTEGER
);
CREATE INDEX IF NOT EXISTS books_last_read_idx ON books (last_read_at);

CREATE TABLE IF NOT EXISTS book_payloads (
	book_id TEXT PRIMARY KEY,
	data    BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS chapters (
	id         TEXT PRIMARY KEY,
	book_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	sort_order INTEGER NOT NULL,
	start_page INTEGER NOT NULL,
	end_page   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS chapters_book_order_idx ON chapters (book_id, sort_order);

CREATE TABLE IF NOT EXISTS sections (
	id               TEXT PRIMARY KEY,
	chapter_id       TEXT NOT NULL,
	book_id          TEXT NOT NULL,
	title            TEXT NOT NULL,
	sort_order       INTEGER NOT NULL,
	start_page       INTEGER NOT NULL,
	end_page         INTEGER NOT NULL,
	extracted_text   TEXT,
	is_read          INTEGER NOT NULL DEFAULT 0,
	read_at          INTEGER,
	last_page_viewed INTEGER,
	scroll_progress  REAL
);
CREATE INDEX IF NOT EXISTS sections_chapter_order_idx ON sections (chapter_id, sort_order);
CREATE INDEX IF NOT EXISTS sections_book_order_idx ON sections (book_id, sort_order);

CREATE TABLE IF NOT EXISTS chapter_claims (
	chapter_id TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS llm_calls (
	id            TEXT PRIMARY KEY,
	timestamp     INTEGER NOT NULL,
	latency_ms    INTEGER NOT NULL,
	book_id       TEXT NOT NULL DEFAULT '',
	chapter_id    TEXT NOT NULL DEFAULT '',
	prompt_key    TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	attempts      INTEGER NOT NULL,
	response      TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS llm_calls_book_idx ON llm_calls (book_id, timestamp);
`

const resequenceSQL = `
UPDATE sections SET sort_order = r.rn FROM (
	SELECT s.id AS id, ROW_NUMBER() OVER (ORDER BY c.sort_order, s.sort_order) AS rn
	FROM sections s JOIN chapters c ON c.id = s.chapter_id
	WHERE s.book_id = ?
) AS r
WHERE sections.id = r.id AND sections.sort_order <> r.rn`

const bookColumns = `id, title, author, total_pages, structure_source, processing_status, created_at, last_read_at`

const chapterColumns = `id, book_id, title, sort_order, start_page, end_page`

const callColumns = `id, timestamp, latency_ms, book_id, chapter_id, prompt_key, provider, model,
	input_tokens, output_tokens, attempts, response, success, error`

const sectionColumns = `id, chapter_id, book_id, title, sort_order, start_page, end_page,
	extracted_text, is_read, read_at, last_page_viewed, scroll_progress`

// SQLite implements Store on an embedded SQLite database file. A single
// connection serializes all access.
type SQLite struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr("create database directory", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, storageErr("open sqlite", err)
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		conn.Close()
		return nil, storageErr("apply schema", err)
	}
	return &SQLite{conn: conn}, nil
}

// with runs fn holding the connection, interruptible through ctx.
func (s *SQLite) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.conn.SetInterrupt(ctx.Done())
	defer s.conn.SetInterrupt(prev)
	return fn(s.conn)
}

// tx runs fn inside a savepoint that rolls back when fn fails.
func (s *SQLite) tx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.with(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)
		return fn(conn)
	})
}

func exec(conn *sqlite.Conn, query string, args ...any) error {
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
}

func query(conn *sqlite.Conn, q string, row func(*sqlite.Stmt) error, args ...any) error {
	return sqlitex.Execute(conn, q, &sqlitex.ExecOptions{Args: args, ResultFunc: row})
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableText(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func isNull(stmt *sqlite.Stmt, col int) bool {
	return stmt.ColumnType(col) == sqlite.TypeNull
}

func columnTime(stmt *sqlite.Stmt, col int) *time.Time {
	if isNull(stmt, col) {
		return nil
	}
	t := time.Unix(0, stmt.ColumnInt64(col)).UTC()
	return &t
}

func scanBook(stmt *sqlite.Stmt) types.Book {
	return types.Book{
		ID:               stmt.ColumnText(0),
		Title:            stmt.ColumnText(1),
		Author:           stmt.ColumnText(2),
		TotalPages:       stmt.ColumnInt(3),
		StructureSource:  types.StructureSource(stmt.ColumnText(4)),
		ProcessingStatus: types.ProcessingStatus(stmt.ColumnText(5)),
		CreatedAt:        time.Unix(0, stmt.ColumnInt64(6)).UTC(),
		LastReadAt:       columnTime(stmt, 7),
	}
}

func scanChapter(stmt *sqlite.Stmt) types.Chapter {
	return types.Chapter{
		ID:        stmt.ColumnText(0),
		BookID:    stmt.ColumnText(1),
		Title:     stmt.ColumnText(2),
		Order:     stmt.ColumnInt(3),
		StartPage: stmt.ColumnInt(4),
		EndPage:   stmt.ColumnInt(5),
	}
}

func scanSection(stmt *sqlite.Stmt) types.Section {
	sec := types.Section{
		ID:        stmt.ColumnText(0),
		ChapterID: stmt.ColumnText(1),
		BookID:    stmt.ColumnText(2),
		Title:     stmt.ColumnText(3),
		Order:     stmt.ColumnInt(4),
		StartPage: stmt.ColumnInt(5),
		EndPage:   stmt.ColumnInt(6),
		IsRead:    stmt.ColumnInt(8) != 0,
		ReadAt:    columnTime(stmt, 9),
	}
	if !isNull(stmt, 7) {
		text := stmt.ColumnText(7)
		sec.ExtractedText = &text
	}
	if !isNull(stmt, 10) {
		p := stmt.ColumnInt(10)
		sec.LastPageViewed = &p
	}
	if !isNull(stmt, 11) {
		v := stmt.ColumnFloat(11)
		sec.ScrollProgress = &v
	}
	return sec
}

func (s *SQLite) CreateBook(ctx context.Context, book *types.Book, payload []byte) error {
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn,
			`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			book.ID, book.Title, book.Author, int64(book.TotalPages),
			string(book.StructureSource), string(book.ProcessingStatus),
			nanos(book.CreatedAt), nullableTime(book.LastReadAt),
		); err != nil {
			return err
		}
		return exec(conn, `INSERT INTO book_payloads (book_id, data) VALUES (?, ?)`, book.ID, payload)
	})
	if err != nil {
		return storageErr("create book", err)
	}
	return nil
}

func (s *SQLite) GetBook(ctx context.Context, id string) (*types.Book, error) {
	var book *types.Book
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+bookColumns+` FROM books WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			b := scanBook(stmt)
			book = &b
			return nil
		}, id)
	})
	if err != nil {
		return nil, storageErr("get book", err)
	}
	if book == nil {
		return nil, notFound("book", id)
	}
	return book, nil
}

func (s *SQLite) ListBooks(ctx context.Context) ([]types.Book, error) {
	var books []types.Book
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn,
			`SELECT `+bookColumns+` FROM books
			ORDER BY last_read_at IS NULL, last_read_at DESC, created_at DESC`,
			func(stmt *sqlite.Stmt) error {
				books = append(books, scanBook(stmt))
				return nil
			})
	})
	if err != nil {
		return nil, storageErr("list books", err)
	}
	return books, nil
}

func (s *SQLite) BookPayload(ctx context.Context, id string) ([]byte, error) {
	var (
		data  []byte
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT data FROM book_payloads WHERE book_id = ?`, func(stmt *sqlite.Stmt) error {
			found = true
			var err error
			data, err = io.ReadAll(stmt.ColumnReader(0))
			return err
		}, id)
	})
	if err != nil {
		return nil, storageErr("read payload", err)
	}
	if !found {
		return nil, notFound("book", id)
	}
	return data, nil
}

// updateOne runs a single-row update and reports ErrNotFound when no row matched.
func (s *SQLite) updateOne(ctx context.Context, op, kind, id, q string, args ...any) error {
	var changed int
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, q, args...); err != nil {
			return err
		}
		changed = conn.Changes()
		return nil
	})
	if err != nil {
		return storageErr(op, err)
	}
	if changed == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (s *SQLite) UpdateBookStatus(ctx context.Context, id string, status types.ProcessingStatus) error {
	return s.updateOne(ctx, "update book status", "book", id,
		`UPDATE books SET processing_status = ? WHERE id = ?`, string(status), id)
}

func (s *SQLite) TouchBook(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, "touch book", "book", id,
		`UPDATE books SET last_read_at = ? WHERE id = ?`, nanos(at), id)
}

func (s *SQLite) DeleteBook(ctx context.Context, id string) error {
	var deleted int
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		steps := []string{
			`DELETE FROM sections WHERE book_id = ?`,
			`DELETE FROM chapter_claims WHERE chapter_id IN (SELECT id FROM chapters WHERE book_id = ?)`,
			`DELETE FROM chapters WHERE book_id = ?`,
			`DELETE FROM book_payloads WHERE book_id = ?`,
			`DELETE FROM books WHERE id = ?`,
		}
		for _, q := range steps {
			if err := exec(conn, q, id); err != nil {
				return err
			}
		}
		deleted = conn.Changes()
		return nil
	})
	if err != nil {
		return storageErr("delete book", err)
	}
	if deleted == 0 {
		return notFound("book", id)
	}
	return nil
}

func insertSection(conn *sqlite.Conn, sec types.Section) error {
	isRead := int64(0)
	if sec.IsRead {
		isRead = 1
	}
	return exec(conn,
		`INSERT INTO sections (`+sectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, sec.ChapterID, sec.BookID, sec.Title, int64(sec.Order),
		int64(sec.StartPage), int64(sec.EndPage), nullableText(sec.ExtractedText),
		isRead, nullableTime(sec.ReadAt), nullableInt(sec.LastPageViewed), nullableFloat(sec.ScrollProgress),
	)
}

func (s *SQLite) CreateStructure(ctx context.Context, chapters []types.Chapter, sections []types.Section) error {
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		for _, c := range chapters {
			if err := exec(conn,
				`INSERT INTO chapters (`+chapterColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, c.BookID, c.Title, int64(c.Order), int64(c.StartPage), int64(c.EndPage),
			); err != nil {
				return err
			}
		}
		for _, sec := range sections {
			if err := insertSection(conn, sec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("create structure", err)
	}
	return nil
}

func (s *SQLite) GetChapter(ctx context.Context, id string) (*types.Chapter, error) {
	var ch *types.Chapter
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			c := scanChapter(stmt)
			ch = &c
			return nil
		}, id)
	})
	if err != nil {
		return nil, storageErr("get chapter", err)
	}
	if ch == nil {
		return nil, notFound("chapter", id)
	}
	return ch, nil
}

func (s *SQLite) ListChapters(ctx context.Context, bookID string) ([]types.Chapter, error) {
	var chapters []types.Chapter
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+chapterColumns+` FROM chapters WHERE book_id = ? ORDER BY sort_order`,
			func(stmt *sqlite.Stmt) error {
				chapters = append(chapters, scanChapter(stmt))
				return nil
			}, bookID)
	})
	if err != nil {
		return nil, storageErr("list chapters", err)
	}
	return chapters, nil
}

func (s *SQLite) ClaimChapter(ctx context.Context, chapterID, owner string, ttl time.Duration) (bool, error) {
	var claimed bool
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		now := time.Now()
		var exists bool
		if err := query(conn, `SELECT 1 FROM chapters WHERE id = ?`, func(*sqlite.Stmt) error {
			exists = true
			return nil
		}, chapterID); err != nil {
			return err
		}
		if !exists {
			return notFound("chapter", chapterID)
		}
		if err := exec(conn,
			`DELETE FROM chapter_claims WHERE chapter_id = ? AND (expires_at <= ? OR owner = ?)`,
			chapterID, nanos(now), owner,
		); err != nil {
			return err
		}
		if err := exec(conn,
			`INSERT OR IGNORE INTO chapter_claims (chapter_id, owner, expires_at) VALUES (?, ?, ?)`,
			chapterID, owner, nanos(now.Add(ttl)),
		); err != nil {
			return err
		}
		claimed = conn.Changes() == 1
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return false, err
		}
		return false, storageErr("claim chapter", err)
	}
	return claimed, nil
}

func (s *SQLite) ReleaseChapter(ctx context.Context, chapterID, owner string) error {
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, `DELETE FROM chapter_claims WHERE chapter_id = ? AND owner = ?`, chapterID, owner)
	})
	if err != nil {
		return storageErr("release chapter", err)
	}
	return nil
}

func (s *SQLite) InsertChapterSections(ctx context.Context, chapterID string, sections []types.Section, replace bool) error {
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		var bookID string
		if err := query(conn, `SELECT book_id FROM chapters WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			bookID = stmt.ColumnText(0)
			return nil
		}, chapterID); err != nil {
			return err
		}
		if bookID == "" {
			return notFound("chapter", chapterID)
		}
		if replace {
			if err := exec(conn, `DELETE FROM sections WHERE chapter_id = ?`, chapterID); err != nil {
				return err
			}
		}
		for _, sec := range sections {
			if err := insertSection(conn, sec); err != nil {
				return err
			}
		}
		return exec(conn, resequenceSQL, bookID)
	})
	if err != nil {
		if isNotFound(err) {
			return err
		}
		return storageErr("insert sections", err)
	}
	return nil
}

func (s *SQLite) GetSection(ctx context.Context, id string) (*types.Section, error) {
	var sec *types.Section
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+sectionColumns+` FROM sections WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			v := scanSection(stmt)
			sec = &v
			return nil
		}, id)
	})
	if err != nil {
		return nil, storageErr("get section", err)
	}
	if sec == nil {
		return nil, notFound("section", id)
	}
	return sec, nil
}

func (s *SQLite) listSections(ctx context.Context, where, arg string) ([]types.Section, error) {
	var sections []types.Section
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+sectionColumns+` FROM sections WHERE `+where+` = ? ORDER BY sort_order`,
			func(stmt *sqlite.Stmt) error {
				sections = append(sections, scanSection(stmt))
				return nil
			}, arg)
	})
	if err != nil {
		return nil, storageErr("list sections", err)
	}
	return sections, nil
}

func (s *SQLite) ListSectionsByChapter(ctx context.Context, chapterID string) ([]types.Section, error) {
	return s.listSections(ctx, "chapter_id", chapterID)
}

func (s *SQLite) ListSectionsByBook(ctx context.Context, bookID string) ([]types.Section, error) {
	return s.listSections(ctx, "book_id", bookID)
}

func (s *SQLite) CountSections(ctx context.Context, chapterID string) (int, error) {
	var n int
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT COUNT(*) FROM sections WHERE chapter_id = ?`, func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		}, chapterID)
	})
	if err != nil {
		return 0, storageErr("count sections", err)
	}
	return n, nil
}

func (s *SQLite) LastSection(ctx context.Context, bookID string) (*types.Section, error) {
	var sec *types.Section
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn,
			`SELECT `+sectionColumns+` FROM sections WHERE book_id = ? ORDER BY sort_order DESC LIMIT 1`,
			func(stmt *sqlite.Stmt) error {
				v := scanSection(stmt)
				sec = &v
				return nil
			}, bookID)
	})
	if err != nil {
		return nil, storageErr("last section", err)
	}
	return sec, nil
}

func (s *SQLite) MarkSectionRead(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, "mark read", "section", id,
		`UPDATE sections SET is_read = 1, read_at = COALESCE(read_at, ?) WHERE id = ?`, nanos(at), id)
}

func (s *SQLite) MarkSectionUnread(ctx context.Context, id string) error {
	return s.updateOne(ctx, "mark unread", "section", id,
		`UPDATE sections SET is_read = 0, read_at = NULL WHERE id = ?`, id)
}

func (s *SQLite) UpdateSectionPosition(ctx context.Context, id string, lastPage *int, scroll *float64) error {
	return s.updateOne(ctx, "update position", "section", id,
		`UPDATE sections SET
			last_page_viewed = COALESCE(?, last_page_viewed),
			scroll_progress = COALESCE(?, scroll_progress)
		WHERE id = ?`,
		nullableInt(lastPage), nullableFloat(scroll), id)
}

func scanCall(stmt *sqlite.Stmt) llmcall.Call {
	return llmcall.Call{
		ID:           stmt.ColumnText(0),
		Timestamp:    time.Unix(0, stmt.ColumnInt64(1)).UTC(),
		LatencyMs:    stmt.ColumnInt(2),
		BookID:       stmt.ColumnText(3),
		ChapterID:    stmt.ColumnText(4),
		PromptKey:    stmt.ColumnText(5),
		Provider:     stmt.ColumnText(6),
		Model:        stmt.ColumnText(7),
		InputTokens:  stmt.ColumnInt(8),
		OutputTokens: stmt.ColumnInt(9),
		Attempts:     stmt.ColumnInt(10),
		Response:     stmt.ColumnText(11),
		Success:      stmt.ColumnInt(12) != 0,
		Error:        stmt.ColumnText(13),
	}
}

func (s *SQLite) CreateLLMCall(ctx context.Context, call *llmcall.Call) error {
	success := 0
	if call.Success {
		success = 1
	}
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return exec(conn,
			`INSERT INTO llm_calls (`+callColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			call.ID, nanos(call.Timestamp), int64(call.LatencyMs), call.BookID, call.ChapterID,
			call.PromptKey, call.Provider, call.Model, int64(call.InputTokens), int64(call.OutputTokens),
			int64(call.Attempts), call.Response, int64(success), call.Error,
		)
	})
	if err != nil {
		return storageErr("create llm call", err)
	}
	return nil
}

func (s *SQLite) GetLLMCall(ctx context.Context, id string) (*llmcall.Call, error) {
	var call *llmcall.Call
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+callColumns+` FROM llm_calls WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			c := scanCall(stmt)
			call = &c
			return nil
		}, id)
	})
	if err != nil {
		return nil, storageErr("get llm call", err)
	}
	if call == nil {
		return nil, notFound("llm call", id)
	}
	return call, nil
}

func (s *SQLite) ListLLMCalls(ctx context.Context, filter llmcall.Filter) ([]llmcall.Call, error) {
	var (
		conds []string
		args  []any
	)
	if filter.BookID != "" {
		conds = append(conds, "book_id = ?")
		args = append(args, filter.BookID)
	}
	if filter.ChapterID != "" {
		conds = append(conds, "chapter_id = ?")
		args = append(args, filter.ChapterID)
	}
	if filter.PromptKey != "" {
		conds = append(conds, "prompt_key = ?")
		args = append(args, filter.PromptKey)
	}
	if filter.Success != nil {
		conds = append(conds, "success = ?")
		if *filter.Success {
			args = append(args, int64(1))
		} else {
			args = append(args, int64(0))
		}
	}

	q := `SELECT ` + callColumns + ` FROM llm_calls`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY timestamp DESC, id DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, int64(filter.Limit))
	}

	var calls []llmcall.Call
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, q, func(stmt *sqlite.Stmt) error {
			calls = append(calls, scanCall(stmt))
			return nil
		}, args...)
	})
	if err != nil {
		return nil, storageErr("list llm calls", err)
	}
	return calls, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `SELECT 1`); err != nil {
			return storageErr("ping", err)
		}
		return nil
	})
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

var _ Store = (*SQLite)(nil)

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/types"
)

type bookRow struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID               string     `bun:"id,pk"`
	Title            string     `bun:"title,notnull"`
	Author           string     `bun:"author,notnull"`
	TotalPages       int        `bun:"total_pages,notnull"`
	StructureSource  string     `bun:"structure_source,notnull"`
	ProcessingStatus string     `bun:"processing_status,notnull"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	LastReadAt       *time.Time `bun:"last_read_at"`
}

type payloadRow struct {
	bun.BaseModel `bun:"table:book_payloads,alias:bp"`

	BookID string `bun:"book_id,pk"`
	Data   []byte `bun:"data,notnull"`
}

type chapterRow struct {
	bun.BaseModel `bun:"table:chapters,alias:ch"`

	ID        string `bun:"id,pk"`
	BookID    string `bun:"book_id,notnull"`
	Title     string `bun:"title,notnull"`
	Order     int    `bun:"sort_order,notnull"`
	StartPage int    `bun:"start_page,notnull"`
	EndPage   int    `bun:"end_page,notnull"`
}

type sectionRow struct {
	bun.BaseModel `bun:"table:sections,alias:s"`

	ID             string     `bun:"id,pk"`
	ChapterID      string     `bun:"chapter_id,notnull"`
	BookID         string     `bun:"book_id,notnull"`
	Title          string     `bun:"title,notnull"`
	Order          int        `bun:"sort_order,notnull"`
	StartPage      int        `bun:"start_page,notnull"`
	EndPage        int        `bun:"end_page,notnull"`
	ExtractedText  *string    `bun:"extracted_text"`
	IsRead         bool       `bun:"is_read,notnull,default:false"`
	ReadAt         *time.Time `bun:"read_at"`
	LastPageViewed *int       `bun:"last_page_viewed"`
	ScrollProgress *float64   `bun:"scroll_progress"`
}

type claimRow struct {
	bun.BaseModel `bun:"table:chapter_claims,alias:cc"`

	ChapterID string    `bun:"chapter_id,pk"`
	Owner     string    `bun:"owner,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

type callRow struct {
	bun.BaseModel `bun:"table:llm_calls,alias:lc"`

	ID           string    `bun:"id,pk"`
	Timestamp    time.Time `bun:"timestamp,notnull"`
	LatencyMs    int       `bun:"latency_ms,notnull"`
	BookID       string    `bun:"book_id,notnull"`
	ChapterID    string    `bun:"chapter_id,notnull"`
	PromptKey    string    `bun:"prompt_key,notnull"`
	Provider     string    `bun:"provider,notnull"`
	Model        string    `bun:"model,notnull"`
	InputTokens  int       `bun:"input_tokens,notnull"`
	OutputTokens int       `bun:"output_tokens,notnull"`
	Attempts     int       `bun:"attempts,notnull"`
	Response     string    `bun:"response,notnull"`
	Success      bool      `bun:"success,notnull"`
	Error        string    `bun:"error,notnull"`
}

func toCallRow(c *llmcall.Call) *callRow {
	return &callRow{
		ID:           c.ID,
		Timestamp:    c.Timestamp,
		LatencyMs:    c.LatencyMs,
		BookID:       c.BookID,
		ChapterID:    c.ChapterID,
		PromptKey:    c.PromptKey,
		Provider:     c.Provider,
		Model:        c.Model,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		Attempts:     c.Attempts,
		Response:     c.Response,
		Success:      c.Success,
		Error:        c.Error,
	}
}

func (r callRow) call() llmcall.Call {
	return llmcall.Call{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		LatencyMs:    r.LatencyMs,
		BookID:       r.BookID,
		ChapterID:    r.ChapterID,
		PromptKey:    r.PromptKey,
		Provider:     r.Provider,
		Model:        r.Model,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Attempts:     r.Attempts,
		Response:     r.Response,
		Success:      r.Success,
		Error:        r.Error,
	}
}

func toBookRow(b *types.Book) *bookRow {
	return &bookRow{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		TotalPages:       b.TotalPages,
		StructureSource:  string(b.StructureSource),
		ProcessingStatus: string(b.ProcessingStatus),
		CreatedAt:        b.CreatedAt,
		LastReadAt:       b.LastReadAt,
	}
}

func (r bookRow) book() types.Book {
	return types.Book{
		ID:               r.ID,
		Title:            r.Title,
		Author:           r.Author,
		TotalPages:       r.TotalPages,
		StructureSource:  types.StructureSource(r.StructureSource),
		ProcessingStatus: types.ProcessingStatus(r.ProcessingStatus),
		CreatedAt:        r.CreatedAt,
		LastReadAt:       r.LastReadAt,
	}
}

func (r chapterRow) chapter() types.Chapter {
	return types.Chapter{
		ID:        r.ID,
		BookID:    r.BookID,
		Title:     r.Title,
		Order:     r.Order,
		StartPage: r.StartPage,
		EndPage:   r.EndPage,
	}
}

func toSectionRow(s types.Section) sectionRow {
	return sectionRow{
		ID:             s.ID,
		ChapterID:      s.ChapterID,
		BookID:         s.BookID,
		Title:          s.Title,
		Order:          s.Order,
		StartPage:      s.StartPage,
		EndPage:        s.EndPage,
		ExtractedText:  s.ExtractedText,
		IsRead:         s.IsRead,
		ReadAt:         s.ReadAt,
		LastPageViewed: s.LastPageViewed,
		ScrollProgress: s.ScrollProgress,
	}
}

func (r sectionRow) section() types.Section {
	return types.Section{
		ID:             r.ID,
		ChapterID:      r.ChapterID,
		BookID:         r.BookID,
		Title:          r.Title,
		Order:          r.Order,
		StartPage:      r.StartPage,
		EndPage:        r.EndPage,
		ExtractedText:  r.ExtractedText,
		IsRead:         r.IsRead,
		ReadAt:         r.ReadAt,
		LastPageViewed: r.LastPageViewed,
		ScrollProgress: r.ScrollProgress,
	}
}

// Postgres implements Store on PostgreSQL through bun.
type Postgres struct {
	db *bun.DB
}

// PostgresOptions configures OpenPostgres.
type PostgresOptions struct {
	DSN string
	// Debug logs every query through bundebug.
	Debug bool
}

// OpenPostgres connects to the database and creates missing tables and indexes.
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if opts.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	models := []any{
		(*bookRow)(nil),
		(*payloadRow)(nil),
		(*chapterRow)(nil),
		(*sectionRow)(nil),
		(*claimRow)(nil),
		(*callRow)(nil),
	}
	for _, m := range models {
		if _, err := p.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return storageErr("create table", err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		unique  bool
		columns []string
	}{
		{(*bookRow)(nil), "books_last_read_idx", false, []string{"last_read_at"}},
		{(*chapterRow)(nil), "chapters_book_order_idx", true, []string{"book_id", "sort_order"}},
		{(*sectionRow)(nil), "sections_chapter_order_idx", false, []string{"chapter_id", "sort_order"}},
		{(*sectionRow)(nil), "sections_book_order_idx", false, []string{"book_id", "sort_order"}},
		{(*callRow)(nil), "llm_calls_book_idx", false, []string{"book_id", "timestamp"}},
	}
	for _, idx := range indexes {
		q := p.db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return storageErr("create index "+idx.name, err)
		}
	}
	return nil
}

func affectedOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (p *Postgres) CreateBook(ctx context.Context, book *types.Book, payload []byte) error {
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(toBookRow(book)).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&payloadRow{BookID: book.ID, Data: payload}).Exec(ctx)
		return err
	})
	if err != nil {
		return storageErr("create book", err)
	}
	return nil
}

func (p *Postgres) GetBook(ctx context.Context, id string) (*types.Book, error) {
	var row bookRow
	if err := p.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("book", id)
		}
		return nil, storageErr("get book", err)
	}
	b := row.book()
	return &b, nil
}

func (p *Postgres) ListBooks(ctx context.Context) ([]types.Book, error) {
	var rows []bookRow
	err := p.db.NewSelect().Model(&rows).
		OrderExpr("last_read_at DESC NULLS LAST, created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("list books", err)
	}
	books := make([]types.Book, len(rows))
	for i, r := range rows {
		books[i] = r.book()
	}
	return books, nil
}

func (p *Postgres) BookPayload(ctx context.Context, id string) ([]byte, error) {
	var row payloadRow
	if err := p.db.NewSelect().Model(&row).Where("book_id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("book", id)
		}
		return nil, storageErr("read payload", err)
	}
	return row.Data, nil
}

func (p *Postgres) UpdateBookStatus(ctx context.Context, id string, status types.ProcessingStatus) error {
	res, err := p.db.NewUpdate().Model((*bookRow)(nil)).
		Set("processing_status = ?", string(status)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageErr("update book status", err)
	}
	return affectedOne(res, "book", id)
}

func (p *Postgres) TouchBook(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.NewUpdate().Model((*bookRow)(nil)).
		Set("last_read_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageErr("touch book", err)
	}
	return affectedOne(res, "book", id)
}

func (p *Postgres) DeleteBook(ctx context.Context, id string) error {
	var deleted int64
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*sectionRow)(nil)).Where("book_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*claimRow)(nil)).
			Where("chapter_id IN (SELECT id FROM chapters WHERE book_id = ?)", id).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*chapterRow)(nil)).Where("book_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*payloadRow)(nil)).Where("book_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*bookRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return storageErr("delete book", err)
	}
	if deleted == 0 {
		return notFound("book", id)
	}
	return nil
}

func (p *Postgres) CreateStructure(ctx context.Context, chapters []types.Chapter, sections []types.Section) error {
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(chapters) > 0 {
			rows := make([]chapterRow, len(chapters))
			for i, c := range chapters {
				rows[i] = chapterRow{ID: c.ID, BookID: c.BookID, Title: c.Title, Order: c.Order, StartPage: c.StartPage, EndPage: c.EndPage}
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return err
			}
		}
		return insertSectionRows(ctx, tx, sections)
	})
	if err != nil {
		return storageErr("create structure", err)
	}
	return nil
}

func insertSectionRows(ctx context.Context, tx bun.Tx, sections []types.Section) error {
	if len(sections) == 0 {
		return nil
	}
	rows := make([]sectionRow, len(sections))
	for i, s := range sections {
		rows[i] = toSectionRow(s)
	}
	_, err := tx.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (p *Postgres) GetChapter(ctx context.Context, id string) (*types.Chapter, error) {
	var row chapterRow
	if err := p.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("chapter", id)
		}
		return nil, storageErr("get chapter", err)
	}
	c := row.chapter()
	return &c, nil
}

func (p *Postgres) ListChapters(ctx context.Context, bookID string) ([]types.Chapter, error) {
	var rows []chapterRow
	if err := p.db.NewSelect().Model(&rows).Where("book_id = ?", bookID).Order("sort_order ASC").Scan(ctx); err != nil {
		return nil, storageErr("list chapters", err)
	}
	chapters := make([]types.Chapter, len(rows))
	for i, r := range rows {
		chapters[i] = r.chapter()
	}
	return chapters, nil
}

const claimSQL = `
INSERT INTO chapter_claims (chapter_id, owner, expires_at) VALUES (?, ?, ?)
ON CONFLICT (chapter_id) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
WHERE chapter_claims.expires_at <= ? OR chapter_claims.owner = EXCLUDED.owner`

func (p *Postgres) ClaimChapter(ctx context.Context, chapterID, owner string, ttl time.Duration) (bool, error) {
	if _, err := p.GetChapter(ctx, chapterID); err != nil {
		return false, err
	}
	now := time.Now()
	res, err := p.db.ExecContext(ctx, claimSQL, chapterID, owner, now.Add(ttl), now)
	if err != nil {
		return false, storageErr("claim chapter", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("claim chapter", err)
	}
	return n == 1, nil
}

func (p *Postgres) ReleaseChapter(ctx context.Context, chapterID, owner string) error {
	_, err := p.db.NewDelete().Model((*claimRow)(nil)).
		Where("chapter_id = ?", chapterID).
		Where("owner = ?", owner).
		Exec(ctx)
	if err != nil {
		return storageErr("release chapter", err)
	}
	return nil
}

const resequencePGSQL = `
UPDATE sections AS s SET sort_order = r.rn FROM (
	SELECT s2.id, ROW_NUMBER() OVER (ORDER BY c.sort_order, s2.sort_order) AS rn
	FROM sections s2 JOIN chapters c ON c.id = s2.chapter_id
	WHERE s2.book_id = ?
) AS r
WHERE s.id = r.id AND s.sort_order <> r.rn`

func (p *Postgres) InsertChapterSections(ctx context.Context, chapterID string, sections []types.Section, replace bool) error {
	ch, err := p.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}
	err = p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if replace {
			if _, err := tx.NewDelete().Model((*sectionRow)(nil)).Where("chapter_id = ?", chapterID).Exec(ctx); err != nil {
				return err
			}
		}
		if err := insertSectionRows(ctx, tx, sections); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, resequencePGSQL, ch.BookID)
		return err
	})
	if err != nil {
		return storageErr("insert sections", err)
	}
	return nil
}

func (p *Postgres) GetSection(ctx context.Context, id string) (*types.Section, error) {
	var row sectionRow
	if err := p.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("section", id)
		}
		return nil, storageErr("get section", err)
	}
	s := row.section()
	return &s, nil
}

func (p *Postgres) listSections(ctx context.Context, column, value string) ([]types.Section, error) {
	var rows []sectionRow
	err := p.db.NewSelect().Model(&rows).
		Where("? = ?", bun.Ident(column), value).
		Order("sort_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("list sections", err)
	}
	sections := make([]types.Section, len(rows))
	for i, r := range rows {
		sections[i] = r.section()
	}
	return sections, nil
}

func (p *Postgres) ListSectionsByChapter(ctx context.Context, chapterID string) ([]types.Section, error) {
	return p.listSections(ctx, "chapter_id", chapterID)
}

func (p *Postgres) ListSectionsByBook(ctx context.Context, bookID string) ([]types.Section, error) {
	return p.listSections(ctx, "book_id", bookID)
}

func (p *Postgres) CountSections(ctx context.Context, chapterID string) (int, error) {
	n, err := p.db.NewSelect().Model((*sectionRow)(nil)).Where("chapter_id = ?", chapterID).Count(ctx)
	if err != nil {
		return 0, storageErr("count sections", err)
	}
	return n, nil
}

func (p *Postgres) LastSection(ctx context.Context, bookID string) (*types.Section, error) {
	var row sectionRow
	err := p.db.NewSelect().Model(&row).
		Where("book_id = ?", bookID).
		Order("sort_order DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("last section", err)
	}
	s := row.section()
	return &s, nil
}

func (p *Postgres) MarkSectionRead(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.NewUpdate().Model((*sectionRow)(nil)).
		Set("is_read = TRUE").
		Set("read_at = COALESCE(read_at, ?)", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageErr("mark read", err)
	}
	return affectedOne(res, "section", id)
}

func (p *Postgres) MarkSectionUnread(ctx context.Context, id string) error {
	res, err := p.db.NewUpdate().Model((*sectionRow)(nil)).
		Set("is_read = FALSE").
		Set("read_at = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageErr("mark unread", err)
	}
	return affectedOne(res, "section", id)
}

func (p *Postgres) UpdateSectionPosition(ctx context.Context, id string, lastPage *int, scroll *float64) error {
	res, err := p.db.NewUpdate().Model((*sectionRow)(nil)).
		Set("last_page_viewed = COALESCE(?, last_page_viewed)", lastPage).
		Set("scroll_progress = COALESCE(?, scroll_progress)", scroll).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageErr("update position", err)
	}
	return affectedOne(res, "section", id)
}

func (p *Postgres) CreateLLMCall(ctx context.Context, call *llmcall.Call) error {
	if _, err := p.db.NewInsert().Model(toCallRow(call)).Exec(ctx); err != nil {
		return storageErr("create llm call", err)
	}
	return nil
}

func (p *Postgres) GetLLMCall(ctx context.Context, id string) (*llmcall.Call, error) {
	var row callRow
	if err := p.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("llm call", id)
		}
		return nil, storageErr("get llm call", err)
	}
	c := row.call()
	return &c, nil
}

func (p *Postgres) ListLLMCalls(ctx context.Context, filter llmcall.Filter) ([]llmcall.Call, error) {
	var rows []callRow
	q := p.db.NewSelect().Model(&rows).OrderExpr("timestamp DESC, id DESC")
	if filter.BookID != "" {
		q = q.Where("book_id = ?", filter.BookID)
	}
	if filter.ChapterID != "" {
		q = q.Where("chapter_id = ?", filter.ChapterID)
	}
	if filter.PromptKey != "" {
		q = q.Where("prompt_key = ?", filter.PromptKey)
	}
	if filter.Success != nil {
		q = q.Where("success = ?", *filter.Success)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list llm calls", err)
	}
	calls := make([]llmcall.Call, len(rows))
	for i, r := range rows {
		calls[i] = r.call()
	}
	return calls, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)

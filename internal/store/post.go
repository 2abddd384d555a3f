// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"quillpress/internal/blog"
	"quillpress/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostStore persists posts with their categories and comments. It
// implements blog.PostRepository.
type PostStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db, now: time.Now}
}

// postColumns lists the columns selected in post queries.
const postColumns = `p.id, p.project_id, p.title, p.author, p.slug, p.meta_description,
	p.content, p.pub_date, p.last_modified, p.is_published, p.version`

// scanPost scans a post row from the result set. Categories and comments
// are loaded separately.
func scanPost(scanner interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	var pubDate sql.NullTime
	err := scanner.Scan(
		&p.ID, &p.ProjectID, &p.Title, &p.Author, &p.Slug, &p.MetaDescription,
		&p.Content, &pubDate, &p.LastModified, &p.IsPublished, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	if pubDate.Valid {
		p.PubDate = pubDate.Time.UTC()
	}
	p.LastModified = p.LastModified.UTC()
	p.Categories = []string{}
	return &p, nil
}

// postFilter accumulates WHERE clauses and their positional arguments.
// Each clause uses "?" for its single argument.
type postFilter struct {
	clauses []string
	args    []any
}

func newPostFilter(projectID string) *postFilter {
	f := &postFilter{}
	f.add("p.project_id = ?", projectID)
	return f
}

func (f *postFilter) add(clause string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(f.args))))
}

func (f *postFilter) visibleTo(userIsOwner bool, now time.Time) {
	if !userIsOwner {
		f.add("p.is_published AND p.pub_date IS NOT NULL AND p.pub_date <= ?", now)
	}
}

func (f *postFilter) category(category string) {
	if category != "" {
		f.add(`EXISTS (SELECT 1 FROM post_categories c
			WHERE c.project_id = p.project_id AND c.post_id = p.id
			AND lower(c.category) = lower(?))`, category)
	}
}

func (f *postFilter) date(year, month, day int) {
	if year > 0 {
		f.add("EXTRACT(YEAR FROM p.pub_date AT TIME ZONE 'UTC') = ?", year)
	}
	if month > 0 {
		f.add("EXTRACT(MONTH FROM p.pub_date AT TIME ZONE 'UTC') = ?", month)
	}
	if day > 0 {
		f.add("EXTRACT(DAY FROM p.pub_date AT TIME ZONE 'UTC') = ?", day)
	}
}

func (f *postFilter) where() string {
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// page appends LIMIT and OFFSET. A page size of zero returns every row.
func (f *postFilter) page(pageNumber, pageSize int) string {
	if pageSize <= 0 {
		return ""
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	f.args = append(f.args, pageSize, (pageNumber-1)*pageSize)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(f.args)-1, len(f.args))
}

const postOrder = " ORDER BY p.pub_date DESC NULLS LAST, p.id"

// GetPost retrieves a post by ID. Returns nil if not found.
func (s *PostStore) GetPost(ctx context.Context, projectID, postID string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p
		WHERE p.project_id = $1 AND p.id = $2`, projectID, postID)
	return s.findOne(ctx, row, "find post by id")
}

// GetPostBySlug retrieves a post by slug. Returns nil if not found.
func (s *PostStore) GetPostBySlug(ctx context.Context, projectID, slug string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p
		WHERE p.project_id = $1 AND p.slug = $2`, projectID, slug)
	return s.findOne(ctx, row, "find post by slug")
}

func (s *PostStore) findOne(ctx context.Context, row *sql.Row, op string) (*models.Post, error) {
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	posts := []models.Post{*p}
	if err := s.loadDetails(ctx, p.ProjectID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// GetVisiblePosts returns one page of posts, newest first.
func (s *PostStore) GetVisiblePosts(ctx context.Context, projectID, category string, userIsOwner bool, pageNumber, pageSize int) ([]models.Post, error) {
	f := newPostFilter(projectID)
	f.visibleTo(userIsOwner, s.now())
	f.category(category)
	return s.list(ctx, f, pageNumber, pageSize)
}

// GetPosts returns one page of the date archive, newest first.
func (s *PostStore) GetPosts(ctx context.Context, projectID string, year, month, day, pageNumber, pageSize int, userIsOwner bool) ([]models.Post, error) {
	f := newPostFilter(projectID)
	f.visibleTo(userIsOwner, s.now())
	f.date(year, month, day)
	return s.list(ctx, f, pageNumber, pageSize)
}

// GetRecentPosts returns the newest visible posts.
func (s *PostStore) GetRecentPosts(ctx context.Context, projectID string, numberToGet int) ([]models.Post, error) {
	f := newPostFilter(projectID)
	f.visibleTo(false, s.now())
	return s.list(ctx, f, 1, numberToGet)
}

func (s *PostStore) list(ctx context.Context, f *postFilter, pageNumber, pageSize int) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p` + f.where() + postOrder
	query += f.page(pageNumber, pageSize)

	rows, err := s.db.QueryContext(ctx, query, f.args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	if len(posts) > 0 {
		if err := s.loadDetails(ctx, posts[0].ProjectID, posts); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// loadDetails fills in the categories and comments of posts in two queries.
func (s *PostStore) loadDetails(ctx context.Context, projectID string, posts []models.Post) error {
	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		index[posts[i].ID] = i
		posts[i].Comments = []models.Comment{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, category FROM post_categories
		WHERE project_id = $1 AND post_id = ANY($2)
		ORDER BY category
	`, projectID, ids)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	for rows.Next() {
		var postID, category string
		if err := rows.Scan(&postID, &category); err != nil {
			rows.Close()
			return fmt.Errorf("scan category: %w", err)
		}
		p := &posts[index[postID]]
		p.Categories = append(p.Categories, category)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT post_id, id, author, email, website, ip, user_agent, content,
		       is_approved, is_admin, pub_date
		FROM comments
		WHERE project_id = $1 AND post_id = ANY($2)
		ORDER BY position
	`, projectID, ids)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID string
		var c models.Comment
		if err := rows.Scan(
			&postID, &c.ID, &c.Author, &c.Email, &c.Website, &c.IP, &c.UserAgent, &c.Content,
			&c.IsApproved, &c.IsAdmin, &c.PubDate,
		); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		c.PubDate = c.PubDate.UTC()
		p := &posts[index[postID]]
		p.Comments = append(p.Comments, c)
	}
	return rows.Err()
}

// GetCategories maps each category to the number of posts the viewer can see in it.
func (s *PostStore) GetCategories(ctx context.Context, projectID string, userIsOwner bool) (map[string]int, error) {
	f := newPostFilter(projectID)
	f.visibleTo(userIsOwner, s.now())
	return s.countBy(ctx, `SELECT c.category, COUNT(*) FROM posts p
		JOIN post_categories c ON c.project_id = p.project_id AND c.post_id = p.id`+
		f.where()+` GROUP BY c.category`, f.args, "count categories")
}

// GetArchives maps each "yyyy/mm" month to the number of posts dated in it.
func (s *PostStore) GetArchives(ctx context.Context, projectID string, userIsOwner bool) (map[string]int, error) {
	f := newPostFilter(projectID)
	f.visibleTo(userIsOwner, s.now())
	f.clauses = append(f.clauses, "p.pub_date IS NOT NULL")
	return s.countBy(ctx, `SELECT to_char(p.pub_date AT TIME ZONE 'UTC', 'YYYY/MM'), COUNT(*)
		FROM posts p`+f.where()+` GROUP BY 1`, f.args, "count archives")
}

func (s *PostStore) countBy(ctx context.Context, query string, args []any, op string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// GetCount returns the number of posts GetVisiblePosts pages through.
func (s *PostStore) GetCount(ctx context.Context, projectID, category string, userIsOwner bool) (int, error) {
	f := newPostFilter(projectID)
	f.visibleTo(userIsOwner, s.now())
	f.category(category)
	return s.count(ctx, f)
}

// GetCountByDate returns the number of posts GetPosts pages through.
func (s *PostStore) GetCountByDate(ctx context.Context, projectID string, year, month, day int, userIsOwner bool) (int, error) {
	f := newPostFilter(projectID)
	f.visibleTo(userIsOwner, s.now())
	f.date(year, month, day)
	return s.count(ctx, f)
}

func (s *PostStore) count(ctx context.Context, f *postFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+f.where(), f.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// SlugIsAvailable reports whether no post in the project uses slug.
func (s *PostStore) SlugIsAvailable(ctx context.Context, projectID, slug string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM posts WHERE project_id = $1 AND slug = $2)
	`, projectID, slug).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return !taken, nil
}

// Save writes the post, its categories, and its comments in one
// transaction. An update only applies when the stored version still
// matches post.Version; otherwise it returns blog.ErrStalePost. On
// success post.Version is the new stored version.
func (s *PostStore) Save(ctx context.Context, projectID string, post *models.Post, isNew bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save post: %w", err)
	}
	defer tx.Rollback()

	pubDate := nullTime(post.PubDate)
	if isNew {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO posts (id, project_id, title, author, slug, meta_description,
			                   content, pub_date, last_modified, is_published, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		`, post.ID, projectID, post.Title, post.Author, post.Slug, post.MetaDescription,
			post.Content, pubDate, post.LastModified, post.IsPublished)
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			UPDATE posts SET
				title = $1, author = $2, slug = $3, meta_description = $4, content = $5,
				pub_date = $6, last_modified = $7, is_published = $8, version = version + 1
			WHERE project_id = $9 AND id = $10 AND version = $11
		`, post.Title, post.Author, post.Slug, post.MetaDescription, post.Content,
			pubDate, post.LastModified, post.IsPublished, projectID, post.ID, post.Version)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return s.missingOrStale(ctx, tx, projectID, post.ID)
			}
		}
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "idx_posts_slug" {
			return blog.ErrSlugConflict
		}
		return fmt.Errorf("save post: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM post_categories WHERE project_id = $1 AND post_id = $2`, projectID, post.ID,
	); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for _, category := range post.Categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_categories (project_id, post_id, category)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
		`, projectID, post.ID, category); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM comments WHERE project_id = $1 AND post_id = $2`, projectID, post.ID,
	); err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	for i, c := range post.Comments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comments (id, project_id, post_id, position, author, email, website,
			                      ip, user_agent, content, is_approved, is_admin, pub_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, c.ID, projectID, post.ID, i, c.Author, c.Email, c.Website,
			c.IP, c.UserAgent, c.Content, c.IsApproved, c.IsAdmin, c.PubDate); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save post: %w", err)
	}
	if isNew {
		post.Version = 1
	} else {
		post.Version++
	}
	return nil
}

// missingOrStale explains an update that matched no row.
func (s *PostStore) missingOrStale(ctx context.Context, tx *sql.Tx, projectID, postID string) error {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE project_id = $1 AND id = $2)`, projectID, postID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check post %s: %w", postID, err)
	}
	if exists {
		return blog.ErrStalePost
	}
	return fmt.Errorf("update post %s: %w", postID, sql.ErrNoRows)
}

// Delete removes a post with its categories and comments. It reports
// whether the post existed.
func (s *PostStore) Delete(ctx context.Context, projectID, postID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE project_id = $1 AND id = $2`, projectID, postID)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	return n > 0, nil
}

// HandlePubDateAboutToChange records the move in post_archive. The
// history is listed by PubDateHistory.
func (s *PostStore) HandlePubDateAboutToChange(ctx context.Context, post *models.Post, newPubDate time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_archive (project_id, post_id, old_pub_date, new_pub_date)
		VALUES ($1, $2, $3, $4)
	`, post.ProjectID, post.ID, nullTime(post.PubDate), newPubDate)
	if err != nil {
		return fmt.Errorf("archive pub date: %w", err)
	}
	return nil
}

// PubDateHistory returns a post's recorded date changes, oldest first.
func (s *PostStore) PubDateHistory(ctx context.Context, projectID, postID string) ([]models.PubDateChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT old_pub_date, new_pub_date, changed_at FROM post_archive
		WHERE project_id = $1 AND post_id = $2
		ORDER BY id
	`, projectID, postID)
	if err != nil {
		return nil, fmt.Errorf("query pub date history: %w", err)
	}
	defer rows.Close()

	var changes []models.PubDateChange
	for rows.Next() {
		c := models.PubDateChange{PostID: postID}
		var old sql.NullTime
		if err := rows.Scan(&old, &c.NewDate, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan pub date history: %w", err)
		}
		if old.Valid {
			c.OldDate = old.Time.UTC()
		}
		c.NewDate = c.NewDate.UTC()
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

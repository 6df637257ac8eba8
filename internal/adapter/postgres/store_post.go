package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gatherhq/gather/internal/domain"
	"github.com/gatherhq/gather/internal/domain/post"
)

const postColumns = `id, event_id, author_id, title, body, like_count, created_at, updated_at`

func scanPost(scanner interface{ Scan(dest ...any) error }) (post.Post, error) {
	var p post.Post
	err := scanner.Scan(
		&p.ID, &p.EventID, &p.AuthorID, &p.Title, &p.Body,
		&p.LikeCount, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *Store) GetPost(ctx context.Context, id string) (*post.Post, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM posts WHERE id = $1`, postColumns), id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get post %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListPostsByEvent(ctx context.Context, eventID string) ([]post.Post, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM posts WHERE event_id = $1 ORDER BY created_at DESC`, postColumns), eventID)
	if err != nil {
		return nil, fmt.Errorf("list posts for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var posts []post.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) CreatePost(ctx context.Context, eventID, authorID string, req post.CreatePostRequest) (*post.Post, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO posts (event_id, author_id, title, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING %s`, postColumns),
		eventID, authorID, req.Title, req.Body)

	p, err := scanPost(row)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &p, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete post %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Comments ---

const commentColumns = `id, post_id, COALESCE(event_id::text, ''), author_id, body, created_at`

func scanComment(scanner interface{ Scan(dest ...any) error }) (post.Comment, error) {
	var c post.Comment
	err := scanner.Scan(&c.ID, &c.PostID, &c.EventID, &c.AuthorID, &c.Body, &c.CreatedAt)
	return c, err
}

func (s *Store) GetComment(ctx context.Context, id string) (*post.Comment, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM comments WHERE id = $1`, commentColumns), id)

	c, err := scanComment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get comment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get comment %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID string) ([]post.Comment, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM comments WHERE post_id = $1 ORDER BY created_at ASC`, commentColumns), postID)
	if err != nil {
		return nil, fmt.Errorf("list comments for post %s: %w", postID, err)
	}
	defer rows.Close()

	var comments []post.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) CreateComment(ctx context.Context, postID, authorID string, req post.CreateCommentRequest) (*post.Comment, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO comments (post_id, event_id, author_id, body)
		 VALUES ($1, (SELECT event_id FROM posts WHERE id = $1), $2, $3)
		 RETURNING %s`, commentColumns),
		postID, authorID, req.Body)

	c, err := scanComment(row)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &c, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete comment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Likes ---

// ToggleLike inserts or removes the (post, user) pair and keeps the
// post's like counter in step within one transaction.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin like tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("unlike post %s: %w", postID, err)
	}

	liked := false
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `INSERT INTO likes (post_id, user_id) VALUES ($1, $2)`, postID, userID); err != nil {
			if isForeignKeyViolation(err) {
				return false, fmt.Errorf("like post %s: %w", postID, domain.ErrNotFound)
			}
			return false, fmt.Errorf("like post %s: %w", postID, err)
		}
		liked = true
	}

	delta := -1
	if liked {
		delta = 1
	}
	tag, err = tx.Exec(ctx,
		`UPDATE posts SET like_count = GREATEST(like_count + $2, 0), updated_at = now() WHERE id = $1`,
		postID, delta)
	if err != nil {
		return false, fmt.Errorf("adjust like count on post %s: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, fmt.Errorf("toggle like on post %s: %w", postID, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit like tx: %w", err)
	}
	return liked, nil
}

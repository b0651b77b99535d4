package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

func (r Repo) InsertActor(ctx context.Context, a domain.Actor) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actors(id,name,role,lob,created_at) VALUES (?,?,?,?,?)`,
		a.ID, nullable(a.Name), string(a.Role), nullable(a.LOB), a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	var a domain.Actor
	var name, lob sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,role,lob,created_at FROM actors WHERE id=?`, id).
		Scan(&a.ID, &name, &a.Role, &lob, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Name = name.String
	a.LOB = lob.String
	return a, nil
}

func (r Repo) ListActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,role,lob,created_at FROM actors ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		var a domain.Actor
		var name, lob sql.NullString
		if err := rows.Scan(&a.ID, &name, &a.Role, &lob, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Name = name.String
		a.LOB = lob.String
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateActorRole(ctx context.Context, id string, role domain.Role) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE actors SET role=? WHERE id=?`, string(role), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

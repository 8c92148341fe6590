package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"telegram-intel/internal/domain"
)

type foreignKey struct {
	Table string
	From  string
	To    string
}

func foreignKeysOf(t *testing.T, s *Storage, table string) []foreignKey {
	t.Helper()
	var fks []foreignKey
	require.NoError(t, s.db.Raw("SELECT \"table\", \"from\", \"to\" FROM pragma_foreign_key_list(?)", table).Scan(&fks).Error)
	return fks
}

func TestMigrate_ForeignKeysPointFromChildToParent(t *testing.T) {
	s, _ := newTestStorage(t)

	assert.ElementsMatch(t, []foreignKey{
		{Table: "target_chats", From: "chat_id", To: "chat_id"},
		{Table: "users", From: "user_id", To: "id"},
		{Table: "users", From: "inviter_user_id", To: "id"},
	}, foreignKeysOf(t, s, "chat_participants"))

	assert.Equal(t, []foreignKey{{Table: "app_users", From: "added_by", To: "id"}}, foreignKeysOf(t, s, "target_chats"))
	assert.Equal(t, []foreignKey{{Table: "app_users", From: "added_by_user_id", To: "id"}}, foreignKeysOf(t, s, "users"))
}

func TestMigrate_ChatAndMembershipWritable(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	owner := createPrincipal(t, s, "owner@example.com")

	_, err := s.UpsertChat(ctx, domain.ChatSnapshot{ID: 1, Title: "Chat", Type: domain.ChatTypeGroup}, owner, domain.ChatStatusCollecting)
	require.NoError(t, err)

	records := []domain.ParticipantRecord{{ID: 10, Role: domain.RoleMember}}
	_, err = s.UpsertUsers(ctx, records, owner)
	require.NoError(t, err)
	n, err := s.UpsertMembership(ctx, 1, records)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// Ограничения строятся gorm из описания связей одинаково для всех диалектов,
// поэтому проверка на разобранной схеме покрывает и postgres.
func TestSchema_ConstraintsReferenceUniqueParentColumns(t *testing.T) {
	cache := &sync.Map{}
	naming := schema.NamingStrategy{}

	models := []any{&appUserRow{}, &targetChatRow{}, &userRow{}, &membershipRow{}}
	parsed := make([]*schema.Schema, 0, len(models))
	for _, m := range models {
		sch, err := schema.Parse(m, cache, naming)
		require.NoError(t, err)
		parsed = append(parsed, sch)
	}

	edges := map[string]struct{}{}
	for _, sch := range parsed {
		for _, rel := range sch.Relationships.Relations {
			c := rel.ParseConstraint()
			if c == nil {
				continue
			}
			for i, fk := range c.ForeignKeys {
				ref := c.References[i]
				edges[c.Schema.Table+"."+fk.DBName+" -> "+c.ReferenceSchema.Table+"."+ref.DBName] = struct{}{}
			}
		}
	}

	got := make([]string, 0, len(edges))
	for e := range edges {
		got = append(got, e)
	}
	assert.ElementsMatch(t, []string{
		"target_chats.added_by -> app_users.id",
		"users.added_by_user_id -> app_users.id",
		"chat_participants.chat_id -> target_chats.chat_id",
		"chat_participants.user_id -> users.id",
		"chat_participants.inviter_user_id -> users.id",
	}, got)
}

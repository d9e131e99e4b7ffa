package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names used by the repositories.
const (
	tableWords       = "words"
	tableProfiles    = "profiles"
	tableCompletions = "completions"
	tableGenEvents   = "generation_events"
)

var (
	// wordsColumns holds the vocabulary of every profile. word_key is the
	// normalized spelling and is unique per profile.
	wordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "profile", Type: field.TypeString},
		{Name: "word", Type: field.TypeString},
		{Name: "word_key", Type: field.TypeString},
		{Name: "translation", Type: field.TypeString, Default: ""},
		{Name: "correct_count", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	wordsTable = &schema.Table{
		Name:       tableWords,
		Columns:    wordsColumns,
		PrimaryKey: []*schema.Column{wordsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "word_profile_word_key",
				Unique:  true,
				Columns: []*schema.Column{wordsColumns[1], wordsColumns[3]},
			},
		},
	}

	// profilesColumns is the persisted profile snapshot. A user may own
	// several profiles; the most recently updated one is authoritative.
	profilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "xp", Type: field.TypeInt, Default: 0},
		{Name: "level", Type: field.TypeInt, Default: 1},
		{Name: "streak", Type: field.TypeInt, Default: 0},
		{Name: "longest_streak", Type: field.TypeInt, Default: 0},
		{Name: "last_smart_repeat_date", Type: field.TypeString, Default: ""},
		{Name: "in_progress_stage", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	profilesTable = &schema.Table{
		Name:       tableProfiles,
		Columns:    profilesColumns,
		PrimaryKey: []*schema.Column{profilesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "profile_user_id_name",
				Unique:  true,
				Columns: []*schema.Column{profilesColumns[1], profilesColumns[2]},
			},
			{
				Name:    "profile_user_id_updated_at",
				Columns: []*schema.Column{profilesColumns[1], profilesColumns[10]},
			},
		},
	}

	// completionsColumns is the append-only completion ledger.
	completionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeString},
		{Name: "profile", Type: field.TypeString},
		{Name: "date_local", Type: field.TypeString},
		{Name: "xp_awarded", Type: field.TypeInt, Default: 0},
		{Name: "streak", Type: field.TypeInt, Default: 0},
	}
	completionsTable = &schema.Table{
		Name:       tableCompletions,
		Columns:    completionsColumns,
		PrimaryKey: []*schema.Column{completionsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "completion_user_id_date_local",
				Columns: []*schema.Column{completionsColumns[3], completionsColumns[5]},
			},
		},
	}

	// genEventsColumns records every call made to the generation service.
	genEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	genEventsTable = &schema.Table{
		Name:       tableGenEvents,
		Columns:    genEventsColumns,
		PrimaryKey: []*schema.Column{genEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "generationevent_purpose", Columns: []*schema.Column{genEventsColumns[5]}},
			{Name: "generationevent_success", Columns: []*schema.Column{genEventsColumns[9]}},
		},
	}

	// tables lists every table the store migrates on open.
	tables = []*schema.Table{
		wordsTable,
		profilesTable,
		completionsTable,
		genEventsTable,
	}
)

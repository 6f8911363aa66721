package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions consumed by ent's auto-migration. Column order matters:
// indexes and foreign keys below reference columns by position.
var (
	TemplatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "title", Type: field.TypeString},
		{Name: "subject", Type: field.TypeString, Default: ""},
		{Name: "difficulty", Type: field.TypeString, Default: ""},
		{Name: "active", Type: field.TypeBool, Default: true},
		{Name: "steps", Type: field.TypeString, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
	}
	TemplatesTable = &schema.Table{
		Name:       "problem_templates",
		Columns:    TemplatesColumns,
		PrimaryKey: []*schema.Column{TemplatesColumns[0]},
	}

	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "student_id", Type: field.TypeString},
		{Name: "template_id", Type: field.TypeString},
		{Name: "current_step", Type: field.TypeInt, Default: 1},
		{Name: "total_steps", Type: field.TypeInt},
		{Name: "status", Type: field.TypeString, Default: "active"},
		{Name: "steps_completed", Type: field.TypeInt, Default: 0},
		{Name: "hints_requested", Type: field.TypeInt, Default: 0},
		{Name: "mistakes_made", Type: field.TypeInt, Default: 0},
		{Name: "accuracy", Type: field.TypeFloat64, Default: 0},
		{Name: "emotional_state", Type: field.TypeString, Default: "neutral"},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "last_activity_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "completion_secs", Type: field.TypeInt, Default: 0},
		{Name: "version", Type: field.TypeInt, Default: 1},
	}
	SessionsTable = &schema.Table{
		Name:       "problem_sessions",
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "problem_sessions_problem_templates_sessions",
				Columns:    []*schema.Column{SessionsColumns[2]},
				RefColumns: []*schema.Column{TemplatesColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "problemsession_student_id", Columns: []*schema.Column{SessionsColumns[1]}},
			{Name: "problemsession_status", Columns: []*schema.Column{SessionsColumns[5]}},
		},
	}

	StepsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "step_number", Type: field.TypeInt},
		{Name: "title", Type: field.TypeString, Default: ""},
		{Name: "prompt", Type: field.TypeString, Size: 2147483647},
		{Name: "expected_response", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "step_type", Type: field.TypeString, Default: "free_response"},
		{Name: "keywords", Type: field.TypeString, Default: "[]"},
		{Name: "student_response", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "attempts", Type: field.TypeInt, Default: 0},
		{Name: "completed", Type: field.TypeBool, Default: false},
		{Name: "quality", Type: field.TypeString, Default: ""},
		{Name: "accuracy", Type: field.TypeFloat64, Default: 0},
		{Name: "understanding", Type: field.TypeString, Default: ""},
		{Name: "feedback", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "misconceptions", Type: field.TypeString, Default: "[]"},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
	}
	StepsTable = &schema.Table{
		Name:       "session_steps",
		Columns:    StepsColumns,
		PrimaryKey: []*schema.Column{StepsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "session_steps_problem_sessions_steps",
				Columns:    []*schema.Column{StepsColumns[1]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "sessionstep_session_id_step_number", Unique: true, Columns: []*schema.Column{StepsColumns[1], StepsColumns[2]}},
		},
	}

	InterventionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "step_number", Type: field.TypeInt},
		{Name: "type", Type: field.TypeString},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "trigger_reason", Type: field.TypeString},
		{Name: "style", Type: field.TypeString, Default: ""},
		{Name: "confidence", Type: field.TypeFloat64, Default: 0},
		{Name: "strategy", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
	}
	InterventionsTable = &schema.Table{
		Name:       "scaffolding_interventions",
		Columns:    InterventionsColumns,
		PrimaryKey: []*schema.Column{InterventionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "scaffolding_interventions_problem_sessions_interventions",
				Columns:    []*schema.Column{InterventionsColumns[1]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "intervention_session_id_step_number", Columns: []*schema.Column{InterventionsColumns[1], InterventionsColumns[2]}},
		},
	}

	MistakesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "session_id", Type: field.TypeString},
		{Name: "step_number", Type: field.TypeInt},
		{Name: "primary_type", Type: field.TypeString},
		{Name: "severity", Type: field.TypeString},
		{Name: "confidence", Type: field.TypeFloat64, Default: 0},
		{Name: "root_causes", Type: field.TypeString, Default: "[]"},
		{Name: "indicators", Type: field.TypeString, Default: "[]"},
		{Name: "misconceptions", Type: field.TypeString, Default: "[]"},
		{Name: "corrected", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
	}
	MistakesTable = &schema.Table{
		Name:       "mistake_records",
		Columns:    MistakesColumns,
		PrimaryKey: []*schema.Column{MistakesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "mistake_records_problem_sessions_mistakes",
				Columns:    []*schema.Column{MistakesColumns[1]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "mistakerecord_session_id", Columns: []*schema.Column{MistakesColumns[1]}},
		},
	}

	LLMRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	LLMRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LLMRequestEventsColumns,
		PrimaryKey: []*schema.Column{LLMRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LLMRequestEventsColumns[5]}},
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{LLMRequestEventsColumns[2]}},
		},
	}

	ActivityEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "kind", Type: field.TypeString},
		{Name: "session_id", Type: field.TypeString, Default: ""},
		{Name: "student_id", Type: field.TypeString, Default: ""},
		{Name: "detail", Type: field.TypeString, Size: 2147483647, Default: "{}"},
	}
	ActivityEventsTable = &schema.Table{
		Name:       "activity_events",
		Columns:    ActivityEventsColumns,
		PrimaryKey: []*schema.Column{ActivityEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "activityevent_session_id", Columns: []*schema.Column{ActivityEventsColumns[4]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		TemplatesTable,
		SessionsTable,
		StepsTable,
		InterventionsTable,
		MistakesTable,
		LLMRequestEventsTable,
		ActivityEventsTable,
	}
)

func init() {
	SessionsTable.ForeignKeys[0].RefTable = TemplatesTable
	StepsTable.ForeignKeys[0].RefTable = SessionsTable
	InterventionsTable.ForeignKeys[0].RefTable = SessionsTable
	MistakesTable.ForeignKeys[0].RefTable = SessionsTable
}

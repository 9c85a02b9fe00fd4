package db

// SchemaSQL contains the database schema initialization SQL.
// Matches the table layout of the Python backend's alembic baseline.
const SchemaSQL = `
    -- ==========================================================================
    -- INGESTION QUEUE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS ingestion_message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source ON ingestion_message TYPE string;
    DEFINE FIELD IF NOT EXISTS payload ON ingestion_message TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS status ON ingestion_message TYPE string DEFAULT "queued";
    DEFINE FIELD IF NOT EXISTS attempts ON ingestion_message TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS idempotency_key ON ingestion_message TYPE string;
    DEFINE FIELD IF NOT EXISTS last_error ON ingestion_message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON ingestion_message TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON ingestion_message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS ingestion_status ON ingestion_message FIELDS status;
    DEFINE INDEX IF NOT EXISTS ingestion_source ON ingestion_message FIELDS source;
    DEFINE INDEX IF NOT EXISTS ingestion_idempotency ON ingestion_message FIELDS idempotency_key;
    DEFINE INDEX IF NOT EXISTS ingestion_created ON ingestion_message FIELDS created_at;

    -- ==========================================================================
    -- CLASSIFICATION EVENTS (immutable)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS classification_event SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source ON classification_event TYPE string DEFAULT "api";
    DEFINE FIELD IF NOT EXISTS source_ip ON classification_event TYPE string DEFAULT "unknown";
    DEFINE FIELD IF NOT EXISTS destination_ip ON classification_event TYPE string DEFAULT "unknown";
    DEFINE FIELD IF NOT EXISTS message_id ON classification_event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS flow_id ON classification_event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS model_version ON classification_event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS prediction ON classification_event TYPE string;
    DEFINE FIELD IF NOT EXISTS confidence ON classification_event TYPE float;
    DEFINE FIELD IF NOT EXISTS is_threat ON classification_event TYPE bool;
    DEFINE FIELD IF NOT EXISTS features ON classification_event TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS metadata ON classification_event TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON classification_event TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS event_created ON classification_event FIELDS created_at;
    DEFINE INDEX IF NOT EXISTS event_prediction ON classification_event FIELDS prediction;
    DEFINE INDEX IF NOT EXISTS event_threat ON classification_event FIELDS is_threat;

    -- ==========================================================================
    -- ALERTS (deduplicated, mutable)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS alert SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS event_id ON alert TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS dedup_key ON alert TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON alert TYPE string;
    DEFINE FIELD IF NOT EXISTS severity ON alert TYPE string;
    DEFINE FIELD IF NOT EXISTS source_ip ON alert TYPE string DEFAULT "unknown";
    DEFINE FIELD IF NOT EXISTS destination_ip ON alert TYPE string DEFAULT "unknown";
    DEFINE FIELD IF NOT EXISTS confidence ON alert TYPE float;
    DEFINE FIELD IF NOT EXISTS status ON alert TYPE string DEFAULT "new";
    DEFINE FIELD IF NOT EXISTS created_at ON alert TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON alert TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS alert_dedup ON alert FIELDS dedup_key;
    DEFINE INDEX IF NOT EXISTS alert_status ON alert FIELDS status;
    DEFINE INDEX IF NOT EXISTS alert_severity ON alert FIELDS severity;
    DEFINE INDEX IF NOT EXISTS alert_created ON alert FIELDS created_at;

    -- ==========================================================================
    -- MODEL EVALUATION EVENTS (canary shadow runs, immutable)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS model_evaluation_event SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source ON model_evaluation_event TYPE string DEFAULT "api";
    DEFINE FIELD IF NOT EXISTS production_model_version ON model_evaluation_event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS canary_model_version ON model_evaluation_event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS production_prediction ON model_evaluation_event TYPE string;
    DEFINE FIELD IF NOT EXISTS canary_prediction ON model_evaluation_event TYPE string;
    DEFINE FIELD IF NOT EXISTS production_confidence ON model_evaluation_event TYPE float;
    DEFINE FIELD IF NOT EXISTS canary_confidence ON model_evaluation_event TYPE float;
    DEFINE FIELD IF NOT EXISTS diverged ON model_evaluation_event TYPE bool;
    DEFINE FIELD IF NOT EXISTS created_at ON model_evaluation_event TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS evaluation_created ON model_evaluation_event FIELDS created_at;
    DEFINE INDEX IF NOT EXISTS evaluation_diverged ON model_evaluation_event FIELDS diverged;

    -- ==========================================================================
    -- AUDIT TRAIL (write-once)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS audit_log SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS actor ON audit_log TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS action ON audit_log TYPE string;
    DEFINE FIELD IF NOT EXISTS target_type ON audit_log TYPE string;
    DEFINE FIELD IF NOT EXISTS target_id ON audit_log TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS details ON audit_log TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON audit_log TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS audit_action ON audit_log FIELDS action;
    DEFINE INDEX IF NOT EXISTS audit_created ON audit_log FIELDS created_at;

    -- ==========================================================================
    -- MODEL REGISTRY
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS model_version SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS version ON model_version TYPE string;
    DEFINE FIELD IF NOT EXISTS path ON model_version TYPE string;
    DEFINE FIELD IF NOT EXISTS accuracy ON model_version TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS status ON model_version TYPE string DEFAULT "active";
    DEFINE FIELD IF NOT EXISTS created_at ON model_version TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON model_version TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS model_version_unique ON model_version FIELDS version UNIQUE;
    DEFINE INDEX IF NOT EXISTS model_version_status ON model_version FIELDS status;
`

package storage

// HistorySchema is the SQL schema for the consultation history database.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS consultations (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    selected    TEXT NOT NULL,
    result      TEXT NOT NULL,
    labels      TEXT NOT NULL DEFAULT '{}',
    passes      INTEGER NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS consultation_diagnoses (
    id              TEXT PRIMARY KEY,
    consultation_id TEXT NOT NULL REFERENCES consultations(id) ON DELETE CASCADE,
    position        INTEGER NOT NULL,
    rule_id         TEXT NOT NULL,
    diagnosis_id    TEXT NOT NULL,
    diagnosis_text  TEXT NOT NULL,
    confidence      REAL NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS diagnoses_fts USING fts5(
    diagnosis_text,
    content='consultation_diagnoses',
    content_rowid='rowid'
);

CREATE INDEX IF NOT EXISTS idx_consultations_created ON consultations(created_at);
CREATE INDEX IF NOT EXISTS idx_consultations_session ON consultations(session_id);
CREATE INDEX IF NOT EXISTS idx_diagnoses_consultation ON consultation_diagnoses(consultation_id);
CREATE INDEX IF NOT EXISTS idx_diagnoses_diagnosis ON consultation_diagnoses(diagnosis_id);
`

// HistoryTriggers keep diagnoses_fts in step with consultation_diagnoses.
const HistoryTriggers = `
CREATE TRIGGER IF NOT EXISTS diagnoses_ai AFTER INSERT ON consultation_diagnoses BEGIN
    INSERT INTO diagnoses_fts(rowid, diagnosis_text) VALUES (new.rowid, new.diagnosis_text);
END;
CREATE TRIGGER IF NOT EXISTS diagnoses_ad AFTER DELETE ON consultation_diagnoses BEGIN
    INSERT INTO diagnoses_fts(diagnoses_fts, rowid, diagnosis_text) VALUES('delete', old.rowid, old.diagnosis_text);
END;
`

// historyDSN opens a private in-memory database; it disappears with the
// last connection, so the store pins the pool to a single one.
const historyDSN = "file::memory:?_pragma=foreign_keys(ON)"

package errcode

import (
	"github.com/gnames/gn"
)

const (
	UnknownError gn.ErrorCode = iota

	// File System errors
	CreateDirError
	CopyFileError
	ReadFileError

	// Logging errors
	CreateLogFileError

	// Resource errors
	ResourceOpenError
	ResourceDownloadError
	ResourceTooLargeError
	ResourceCleanCacheError

	// Schema loading errors
	SchemaParseError
	SchemaLocationError
	SchemaReferenceError
	SchemaNoSchemasError

	// Analyzer errors
	AnalyzerTooDeepError
	AnalyzerCycleError
	AnalyzerUnresolvedError

	// Reader errors
	ReaderXMLError
	ReaderTooDeepError
	ReaderContentTooLargeError
	ReaderRepeatedTooLargeError
	ReaderValidationError
	ReaderInterruptedError

	// Database errors
	DBNotConnectedError
	DBTableExistsCheckError
	DBDropTableError
	DBCreateTableError
	DBInsertError

	// Metadata schema errors
	SchemaGORMConnectionError
	SchemaMigrateError
	SchemaMetadataInsertError

	// SQLite errors
	SQLiteOpenError
	SQLiteCreateTableError
	SQLiteInsertError

	// Sink errors
	SinkLayerExistsError
	SinkUnknownLayerError
	SinkClosedError

	// Converter errors
	ConvertSinkError
	ConvertRemoteDocumentError

	// Writer errors
	WriterOpenError
	WriterNoMetadataError
	WriterQueryError
	WriterOutputError
)

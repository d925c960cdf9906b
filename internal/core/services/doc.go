// Package services holds the pipeline logic behind the driving ports:
// the ingestion Orchestrator, retrieval, settings resolution and the
// folder watcher. Services talk to extractors, embedders and vector
// stores only through the driven port interfaces.
package services

/*
Package codec serializes the payloads shipped inside task envelopes.

Two codecs live here. Attribute maps travel as msgpack: compact binary output
with full round-trip fidelity for the workflow-domain values an envelope
carries (paths, patterns, nested maps). Operator invocations and delegate
bindings travel as gob, because they may carry user-registered concrete types;
both sides of the wire must register the same types via RegisterType.
*/
package codec

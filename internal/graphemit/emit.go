package graphemit

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/iacgraph/iacgraph/internal/gha"
	"github.com/iacgraph/iacgraph/internal/helmfile"
	"github.com/iacgraph/iacgraph/internal/hcl"
	"github.com/iacgraph/iacgraph/internal/xref"
	"github.com/zclconf/go-cty/cty"
)

// idNamespace anchors the deterministic SHA1-derived node/edge ids: the same
// (file, type, name) triple always produces the same id, across runs and
// processes, without any shared counter.
var idNamespace = uuid.MustParse("6f1b1a3c-9f2b-4b8b-9b9b-2a9b6b1f1a3c")

func nodeID(file string, t NodeType, name string) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("node:%s:%s:%s", file, t, name))).String()
}

func edgeID(t EdgeType, source, target, disambiguator string) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("edge:%s:%s:%s:%s", t, source, target, disambiguator))).String()
}

// EmitTerraform maps a module's parsed blocks into resource/module/variable/
// output/local/provider nodes plus depends_on and references edges (§4.12).
func EmitTerraform(blocks []*hcl.TerraformBlock, file string) Graph {
	var g Graph

	blockNodeID := map[*hcl.TerraformBlock]string{}

	for _, b := range blocks {
		nt, name, ok := terraformNodeIdentity(b)
		if !ok {
			continue
		}
		id := nodeID(file, nt, name)
		blockNodeID[b] = id
		g.addNode(Node{
			ID: id, Type: nt, Name: name, File: file,
			Attributes: terraformAttributes(b),
		})
	}

	for _, b := range blocks {
		sourceID, ok := blockNodeID[b]
		if !ok {
			continue
		}
		for _, attr := range b.Attributes {
			for _, ref := range hcl.WalkReferences(attr) {
				targetID, targetName, ok := resolveReferenceTarget(file, ref, blockNodeID, blocks)
				if !ok {
					continue
				}
				g.addEdge(Edge{
					ID: edgeID(EdgeReferences, sourceID, targetID, targetName),
					Source: sourceID, Target: targetID, Type: EdgeReferences,
					Metadata: map[string]any{"attribute": ref.Attribute, "kind": string(ref.Kind)},
				})
			}
		}
		if b.BlockType == hcl.BlockModule || b.BlockType == hcl.BlockResource || b.BlockType == hcl.BlockData {
			if dep, ok := b.Attributes["depends_on"]; ok {
				for _, el := range dep.Elements {
					for _, ref := range hcl.WalkReferences(el) {
						targetID, targetName, ok := resolveReferenceTarget(file, ref, blockNodeID, blocks)
						if !ok {
							continue
						}
						g.addEdge(Edge{
							ID: edgeID(EdgeDependsOn, sourceID, targetID, targetName),
							Source: sourceID, Target: targetID, Type: EdgeDependsOn,
							Metadata: map[string]any{},
						})
					}
				}
			}
		}
	}

	return g
}

func terraformNodeIdentity(b *hcl.TerraformBlock) (NodeType, string, bool) {
	switch b.BlockType {
	case hcl.BlockResource, hcl.BlockData:
		if len(b.Labels) < 2 {
			return "", "", false
		}
		return NodeTerraformResource, b.Labels[0] + "." + b.Labels[1], true
	case hcl.BlockModule:
		if len(b.Labels) < 1 {
			return "", "", false
		}
		return NodeTerraformModule, b.Labels[0], true
	case hcl.BlockVariable:
		if len(b.Labels) < 1 {
			return "", "", false
		}
		return NodeTerraformVariable, b.Labels[0], true
	case hcl.BlockOutput:
		if len(b.Labels) < 1 {
			return "", "", false
		}
		return NodeTerraformOutput, b.Labels[0], true
	case hcl.BlockProvider:
		if len(b.Labels) < 1 {
			return "", "", false
		}
		return NodeTerraformProvider, b.Labels[0], true
	case hcl.BlockLocals:
		return NodeTerraformLocal, "locals", true
	default:
		return "", "", false
	}
}

func terraformAttributes(b *hcl.TerraformBlock) map[string]any {
	attrs := map[string]any{
		"block_type": string(b.BlockType),
		"labels":     b.Labels,
		"line":       b.Location.LineStart,
	}
	if b.BlockType == hcl.BlockLocals {
		names := make([]string, 0, len(b.AttributeOrder))
		for _, k := range b.AttributeOrder {
			if expr, ok := b.Attributes[k]; ok && hcl.IsStaticallyKnown(expr) {
				names = append(names, k)
			}
		}
		attrs["static_locals"] = names
	}
	if staticValues := staticAttributeValues(b); len(staticValues) > 0 {
		attrs["static_attribute_values"] = staticValues
	}
	return attrs
}

// staticAttributeValues resolves every statically known attribute to a
// plain Go value via hcl.ToCtyValue, so consumers of the emitted graph get
// literal resource/local values (e.g. for diffing or display) without
// re-parsing expression text themselves.
func staticAttributeValues(b *hcl.TerraformBlock) map[string]any {
	out := map[string]any{}
	for _, k := range b.AttributeOrder {
		expr, ok := b.Attributes[k]
		if !ok || !hcl.IsStaticallyKnown(expr) {
			continue
		}
		if v := ctyToGo(hcl.ToCtyValue(expr)); v != nil {
			out[k] = v
		}
	}
	return out
}

// ctyToGo converts a cty.Value produced by hcl.ToCtyValue into a plain Go
// value suitable for a Node's Attributes map (string/bool/float64/slice/map).
func ctyToGo(v cty.Value) any {
	if v == cty.NilVal || !v.IsKnown() || v.IsNull() {
		return nil
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString()
	case t == cty.Bool:
		return v.True()
	case t == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case t.IsTupleType() || t.IsListType():
		elems := make([]any, 0)
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			elems = append(elems, ctyToGo(ev))
		}
		return elems
	case t.IsObjectType() || t.IsMapType():
		obj := map[string]any{}
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			obj[k.AsString()] = ctyToGo(ev)
		}
		return obj
	default:
		return nil
	}
}

// resolveReferenceTarget maps a ParsedReference to a node id, handling the
// locals block's per-attribute fan-in by routing every `local.X` reference
// to the single locals node (there is one Local node per file, not per
// attribute).
func resolveReferenceTarget(file string, ref hcl.ParsedReference, blockNodeID map[*hcl.TerraformBlock]string, blocks []*hcl.TerraformBlock) (id string, name string, ok bool) {
	switch ref.Kind {
	case hcl.RefLocal:
		for _, b := range blocks {
			if b.BlockType == hcl.BlockLocals {
				return nodeID(file, NodeTerraformLocal, "locals"), "locals", true
			}
		}
		return "", "", false
	case hcl.RefResource:
		if len(ref.Parts) < 2 {
			return "", "", false
		}
		name = ref.Parts[0] + "." + ref.Parts[1]
		return nodeID(file, NodeTerraformResource, name), name, true
	case hcl.RefData:
		if len(ref.Parts) < 3 {
			return "", "", false
		}
		name = ref.Parts[1] + "." + ref.Parts[2]
		return nodeID(file, NodeTerraformResource, name), name, true
	case hcl.RefModule:
		if len(ref.Parts) < 2 {
			return "", "", false
		}
		name = ref.Parts[1]
		return nodeID(file, NodeTerraformModule, name), name, true
	case hcl.RefVar:
		if len(ref.Parts) < 2 {
			return "", "", false
		}
		name = ref.Parts[1]
		return nodeID(file, NodeTerraformVariable, name), name, true
	default:
		return "", "", false
	}
}

// EmitGHA maps a workflow and its tool-detection result into workflow/job/
// step nodes plus needs/uses/triggers edges (§4.12).
func EmitGHA(wf *gha.Workflow, detected gha.DetectionResult) Graph {
	var g Graph

	workflowID := nodeID(wf.FilePath, NodeGHAWorkflow, wf.Name)
	g.addNode(Node{
		ID: workflowID, Type: NodeGHAWorkflow, Name: wf.Name, File: wf.FilePath,
		Attributes: map[string]any{"job_count": len(wf.JobOrder)},
	})

	for _, trig := range wf.Triggers {
		g.addEdge(Edge{
			ID: edgeID(EdgeGHATriggers, workflowID, workflowID, string(trig.Type)),
			Source: workflowID, Target: workflowID, Type: EdgeGHATriggers,
			Metadata: map[string]any{"trigger_type": string(trig.Type), "branches": trig.Branches},
		})
	}

	jobNodeID := map[string]string{}
	for _, jobID := range wf.JobOrder {
		job := wf.Jobs[jobID]
		id := nodeID(wf.FilePath, NodeGHAJob, jobID)
		jobNodeID[jobID] = id
		g.addNode(Node{
			ID: id, Type: NodeGHAJob, Name: job.Name, File: wf.FilePath,
			Attributes: map[string]any{"runs_on": job.RunsOn, "needs": job.Needs},
		})
	}

	for _, jobID := range wf.JobOrder {
		job := wf.Jobs[jobID]
		sourceID := jobNodeID[jobID]
		for _, need := range job.Needs {
			targetID, ok := jobNodeID[need]
			if !ok {
				continue
			}
			g.addEdge(Edge{
				ID: edgeID(EdgeGHANeeds, sourceID, targetID, ""),
				Source: sourceID, Target: targetID, Type: EdgeGHANeeds,
				Metadata: map[string]any{},
			})
		}

		for idx, step := range job.Steps {
			stepName := step.ID
			if stepName == "" {
				stepName = fmt.Sprintf("step-%d", idx)
			}
			stepID := nodeID(wf.FilePath, NodeGHAStep, jobID+"/"+stepName)
			g.addNode(Node{
				ID: stepID, Type: NodeGHAStep, Name: stepName, File: wf.FilePath,
				Attributes: map[string]any{"uses": step.Uses, "job_id": jobID, "index": idx},
			})
			if step.Kind == gha.StepUses && step.Uses != "" {
				g.addEdge(Edge{
					ID: edgeID(EdgeGHAUsesAction, stepID, stepID, step.Uses),
					Source: stepID, Target: stepID, Type: EdgeGHAUsesAction,
					Metadata: map[string]any{"uses": step.Uses},
				})
			}
		}
	}

	for _, tf := range detected.Terraform {
		stepName := tf.StepID
		if stepName == "" {
			stepName = fmt.Sprintf("step-%d", tf.StepIndex)
		}
		stepID := nodeID(wf.FilePath, NodeGHAStep, tf.JobID+"/"+stepName)
		jobID, ok := jobNodeID[tf.JobID]
		if !ok {
			continue
		}
		g.addEdge(Edge{
			ID: edgeID(EdgeGHAUsesTf, jobID, stepID, string(tf.Command)),
			Source: jobID, Target: stepID, Type: EdgeGHAUsesTf,
			Metadata: map[string]any{"command": string(tf.Command), "confidence": tf.Confidence},
		})
	}

	for _, h := range detected.Helm {
		stepName := h.StepID
		if stepName == "" {
			stepName = fmt.Sprintf("step-%d", h.StepIndex)
		}
		stepID := nodeID(wf.FilePath, NodeGHAStep, h.JobID+"/"+stepName)
		jobID, ok := jobNodeID[h.JobID]
		if !ok {
			continue
		}
		g.addEdge(Edge{
			ID: edgeID(EdgeGHAUsesHelm, jobID, stepID, string(h.Command)),
			Source: jobID, Target: stepID, Type: EdgeGHAUsesHelm,
			Metadata: map[string]any{"command": string(h.Command), "confidence": h.Confidence},
		})
	}

	for _, flow := range gha.DetectOutputFlows(wf, detected) {
		sourceID, sourceOK := jobNodeID[flow.SourceJobID]
		targetID, targetOK := jobNodeID[flow.TargetJobID]
		if !sourceOK || !targetOK {
			continue
		}
		g.addEdge(Edge{
			ID: edgeID(EdgeGHAOutputsTo, sourceID, targetID, flow.OutputName),
			Source: sourceID, Target: targetID, Type: EdgeGHAOutputsTo,
			Metadata: map[string]any{"pattern": string(flow.Pattern), "output": flow.OutputName, "confidence": flow.Confidence},
		})
	}

	return g
}

// EmitHelmfile maps a Helmfile's releases into release nodes plus
// depends_on edges derived from `needs:` (§4.12).
func EmitHelmfile(hf *helmfile.Helmfile) Graph {
	var g Graph

	releaseNodeID := map[string]string{}
	for _, r := range hf.Releases {
		id := nodeID(hf.FilePath, NodeHelmfileRelease, r.Namespace+"/"+r.Name)
		releaseNodeID[r.Name] = id
		releaseNodeID[r.Namespace+"/"+r.Name] = id
		g.addNode(Node{
			ID: id, Type: NodeHelmfileRelease, Name: r.Name, File: hf.FilePath,
			Attributes: map[string]any{
				"namespace": r.Namespace, "chart": r.Chart, "version": r.Version,
				"templated": r.HasEnvironmentTemplating(),
			},
		})
	}

	for _, r := range hf.Releases {
		sourceID := releaseNodeID[r.Namespace+"/"+r.Name]
		for _, need := range r.Needs {
			targetID, ok := releaseNodeID[need]
			if !ok {
				continue
			}
			g.addEdge(Edge{
				ID: edgeID(EdgeDependsOn, sourceID, targetID, ""),
				Source: sourceID, Target: targetID, Type: EdgeDependsOn,
				Metadata: map[string]any{},
			})
		}
	}

	return g
}

// EmitCrossReference maps scored cross-reference flows into
// terraform_to_helm edges between the already-emitted GHA job nodes
// (§4.12). wfFile identifies which workflow's job nodes the flows' job ids
// resolve against.
func EmitCrossReference(wfFile string, flows []xref.Flow) Graph {
	var g Graph

	for _, f := range flows {
		sourceID := nodeID(wfFile, NodeGHAJob, f.Source.JobID)
		targetID := nodeID(wfFile, NodeGHAJob, f.Target.JobID)
		g.addEdge(Edge{
			ID: edgeID(EdgeTerraformToHelm, sourceID, targetID, f.ID),
			Source: sourceID, Target: targetID, Type: EdgeTerraformToHelm,
			Metadata: map[string]any{
				"pattern":          string(f.Pattern),
				"confidence":       f.Confidence,
				"confidence_level": string(f.ConfidenceLevel),
				"output":           f.Source.OutputName,
				"target_path":      f.Target.Path,
			},
		})
	}

	return g
}

package opts

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/goliatone/go-datastore-options/layering"
)

// newLayeredService declares programmatic options for refrigerator and the
// appliance hierarchy and adds an annotation source below them.
func newLayeredService(t *testing.T) *OptionsService {
	t.Helper()
	global, cfg := newSampleConfiguration()
	global.
		Force(true).
		NamedQuery("foo", "global foo").
		NamedQuery("bar", "global bar").
		Entity(refrigerator{}).
		Name("prog").
		NamedQuery("foo", "fridge foo").
		NamedQuery("baz", "fridge baz").
		Property("temperature", ElementField).
		Embed("celsius").
		Entity(timestamps{}).
		Name("timestamps").
		Entity(auditable{}).
		Name("auditable").
		Force(true).
		Property("owner", ElementField).
		Embed("audit-owner").
		Entity(appliance{}).
		Force(false)

	provider := staticProvider{
		global: []Annotation{
			namedQueryAnnotation{Name: "qux", Query: "annotated qux"},
			namedQueryAnnotation{Name: "bar", Query: "annotated bar"},
		},
		elements: map[reflect.Type][]AnnotatedElement{
			TypeOf[refrigerator](): {
				{Kind: ElementType, Annotation: forceAnnotation{Value: false}},
				{Kind: ElementType, Annotation: embedAnnotation{Value: "annotated"}},
				{Kind: ElementField, Member: "Temperature", Annotation: embedAnnotation{Value: "kelvin"}},
			},
		},
	}
	annotations, err := NewAnnotationSource(sampleRegistry(t), provider, refrigerator{}, appliance{})
	if err != nil {
		t.Fatalf("annotation source: %v", err)
	}
	service, err := Bootstrap(cfg, WithSources(annotations))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return service
}

func TestBootstrapPutsProgrammaticSourceFirst(t *testing.T) {
	service := newLayeredService(t)
	sources := service.Sources()
	if len(sources) != 2 || sources[0].Name() != "programmatic" || sources[1].Name() != "annotation" {
		t.Fatalf("unexpected sources %v", sources)
	}
}

func TestBootstrapFreezesConfiguration(t *testing.T) {
	global, cfg := newSampleConfiguration()
	global.Force(true)
	if _, err := Bootstrap(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	global.Force(false)
	if !errors.Is(cfg.Err(), ErrFrozen) {
		t.Fatalf("expected declarations after bootstrap to fail, got %v", cfg.Err())
	}
	if _, err := Bootstrap(nil); err == nil {
		t.Fatalf("expected nil configuration to fail")
	}
}

func TestScopeSpecificityBeatsSourceOrder(t *testing.T) {
	service := newLayeredService(t)

	if !GetUnique(service.GlobalContext(), forceOption) {
		t.Fatalf("expected global force=true")
	}
	// Entity annotation beats the global programmatic value.
	if GetUnique(service.EntityContext(TypeOf[refrigerator]()), forceOption) {
		t.Fatalf("expected entity annotation to override global force")
	}
	if !GetUnique(service.EntityContext(TypeOf[microwave]()), forceOption) {
		t.Fatalf("expected microwave to inherit global force")
	}
}

func TestProgrammaticBeatsAnnotationInSameScope(t *testing.T) {
	service := newLayeredService(t)
	entity := service.EntityContext(reflect.TypeFor[*refrigerator]())
	if GetUnique(entity, nameOption) != "prog" {
		t.Fatalf("expected programmatic name, got %q", GetUnique(entity, nameOption))
	}
	property := service.PropertyContext(TypeOf[refrigerator](), "Temperature")
	if GetUnique(property, embedOption) != "celsius" {
		t.Fatalf("expected programmatic embed, got %q", GetUnique(property, embedOption))
	}
	if GetUnique(property, forceOption) {
		t.Fatalf("expected property context to fall back to entity force=false")
	}
	if GetUnique(entity, embedOption) != "annotated" {
		t.Fatalf("expected entity level embed annotation, got %q", GetUnique(entity, embedOption))
	}
}

func TestAbsentOptionsResolveToDefaults(t *testing.T) {
	service := newLayeredService(t)
	ctx := service.PropertyContext(TypeOf[microwave](), "power")
	if _, ok := LookupUnique(ctx, limitOption); ok {
		t.Fatalf("expected limit to be absent")
	}
	if got := GetUniqueOr(ctx, limitOption, limit{Max: 10}); got.Max != 10 {
		t.Fatalf("expected fallback, got %+v", got)
	}
	if _, ok := Lookup(ctx, namedQueryOption, "missing"); ok {
		t.Fatalf("expected missing entry")
	}

	empty := NewOptionsService()
	if all := GetAll(empty.GlobalContext(), namedQueryOption); all == nil || len(all) != 0 {
		t.Fatalf("expected empty map from empty service, got %#v", all)
	}
}

func TestKeyedOptionsMergeAcrossScopes(t *testing.T) {
	service := newLayeredService(t)

	got := GetAll(service.EntityContext(TypeOf[refrigerator]()), namedQueryOption)
	want := map[string]string{
		"foo": "fridge foo",
		"bar": "global bar",
		"baz": "fridge baz",
		"qux": "annotated qux",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if Get(service.GlobalContext(), namedQueryOption, "foo") != "global foo" {
		t.Fatalf("entity entries must not leak into the global context")
	}
	if Get(service.EntityContext(TypeOf[refrigerator]()), namedQueryOption, "bar") != "global bar" {
		t.Fatalf("expected programmatic global entry to win over annotated one")
	}
}

func TestEmbeddedEntitiesActAsParents(t *testing.T) {
	service := newLayeredService(t)

	entity := service.EntityContext(TypeOf[appliance]())
	if GetUnique(entity, forceOption) {
		t.Fatalf("expected appliance force=false to beat parent force")
	}
	if GetUnique(entity, nameOption) != "auditable" {
		t.Fatalf("expected nearest parent name, got %q", GetUnique(entity, nameOption))
	}
	if GetUnique(service.EntityContext(TypeOf[auditable]()), nameOption) != "auditable" {
		t.Fatalf("expected auditable own name")
	}

	property := service.PropertyContext(TypeOf[appliance](), "owner")
	if GetUnique(property, embedOption) != "audit-owner" {
		t.Fatalf("expected property declared on parent to apply, got %q", GetUnique(property, embedOption))
	}

	var scopes []string
	for _, layer := range entity.Layers() {
		scopes = append(scopes, layer.Scope)
	}
	wantScopes := []string{"entity/opts.appliance", "entity/opts.auditable", "entity/opts.timestamps", "global", "global"}
	if !reflect.DeepEqual(scopes, wantScopes) {
		t.Fatalf("expected layers %v, got %v", wantScopes, scopes)
	}
}

func TestLayersOrderAndSpecificity(t *testing.T) {
	service := newLayeredService(t)
	layers := service.PropertyContext(TypeOf[refrigerator](), "temperature").Layers()

	type pair struct {
		source      string
		specificity layering.Specificity
	}
	var got []pair
	for _, layer := range layers {
		got = append(got, pair{layer.Source, layer.Specificity})
	}
	want := []pair{
		{"programmatic", layering.SpecificityProperty},
		{"annotation", layering.SpecificityProperty},
		{"programmatic", layering.SpecificityEntity},
		{"annotation", layering.SpecificityEntity},
		{"programmatic", layering.SpecificityGlobal},
		{"annotation", layering.SpecificityGlobal},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTraceReportsProvenance(t *testing.T) {
	service := newLayeredService(t)
	ctx := service.EntityContext(TypeOf[refrigerator]())

	trace := ctx.Trace(forceOption.Key())
	if trace.Option != "force" || trace.Scope != "entity/opts.refrigerator" {
		t.Fatalf("unexpected trace header %+v", trace)
	}
	effective, ok := trace.EffectiveLayer()
	if !ok || effective.Source != "annotation" || effective.Scope != "entity/opts.refrigerator" || effective.Value != false {
		t.Fatalf("unexpected effective layer %+v", effective)
	}
	found := 0
	for _, layer := range trace.Layers {
		if layer.Found {
			found++
		}
	}
	if found != 2 {
		t.Fatalf("expected entity and global layers to hold force, got %d", found)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if len(decoded.Layers) != len(trace.Layers) || decoded.Layers[0].Specificity != "entity" {
		t.Fatalf("unexpected decoded trace %+v", decoded)
	}

	keyed := ctx.Trace(namedQueryOption.Key())
	if keyed.Layers[0].Value.(map[string]any)["foo"] != "fridge foo" {
		t.Fatalf("unexpected keyed provenance %+v", keyed.Layers[0])
	}
}

func TestTraceMarksOnlySurvivingKeyedEntries(t *testing.T) {
	service := newLayeredService(t)
	keyed := service.EntityContext(TypeOf[refrigerator]()).Trace(namedQueryOption.Key())

	want := map[string][]string{
		"entity/opts.refrigerator programmatic": {"baz", "foo"},
		"global programmatic":                   {"bar"},
		"global annotation":                     {"qux"},
	}
	for _, layer := range keyed.Layers {
		keys, ok := want[layer.Scope+" "+layer.Source]
		if !ok {
			if layer.Effective || layer.Found {
				t.Fatalf("unexpected keyed layer %+v", layer)
			}
			continue
		}
		if !layer.Effective || !reflect.DeepEqual(layer.EffectiveKeys, keys) {
			t.Fatalf("expected %s %s to supply %v, got %+v", layer.Scope, layer.Source, keys, layer)
		}
	}

	global, cfg := newSampleConfiguration()
	global.
		NamedQuery("foo", "global foo").
		Entity(refrigerator{}).
		NamedQuery("foo", "fridge foo")
	shadowedService, err := Bootstrap(cfg)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	shadowed := shadowedService.EntityContext(TypeOf[refrigerator]()).Trace(namedQueryOption.Key())
	for _, layer := range shadowed.Layers {
		if layer.Scope == "global" && layer.Found && layer.Effective {
			t.Fatalf("fully shadowed global layer must not be effective: %+v", layer)
		}
		if layer.Scope == "entity/opts.refrigerator" && !layer.Effective {
			t.Fatalf("expected the entity layer to be effective: %+v", layer)
		}
	}
}

func TestSnapshotFlattensEffectiveValues(t *testing.T) {
	service := newLayeredService(t)
	snapshot := service.EntityContext(TypeOf[refrigerator]()).Snapshot()

	if snapshot["force"] != false || snapshot["name"] != "prog" || snapshot["embed"] != "annotated" {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
	queries, ok := snapshot["namedQuery"].(map[string]any)
	if !ok || len(queries) != 4 {
		t.Fatalf("unexpected keyed snapshot %#v", snapshot["namedQuery"])
	}
	if _, ok := snapshot["limit"]; ok {
		t.Fatalf("absent options must not appear")
	}
}

func TestContextsAreCachedPerScope(t *testing.T) {
	service := newLayeredService(t)
	first := service.EntityContext(TypeOf[refrigerator]())
	second := service.ContextFor(EntityScope(TypeOf[refrigerator]()))
	if first != second {
		t.Fatalf("expected cached context")
	}
	if first.Scope() != EntityScope(TypeOf[refrigerator]()) {
		t.Fatalf("unexpected scope %v", first.Scope())
	}
	if service.PropertyContext(TypeOf[refrigerator](), "Temperature") != service.PropertyContext(TypeOf[refrigerator](), "temperature") {
		t.Fatalf("expected property names to share a cached context")
	}
}

func TestConcurrentReads(t *testing.T) {
	service := newLayeredService(t)
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var ctx *MergedContext
			if i%2 == 0 {
				ctx = service.EntityContext(TypeOf[appliance]())
			} else {
				ctx = service.PropertyContext(TypeOf[refrigerator](), "temperature")
			}
			if i%2 == 0 && GetUnique(ctx, nameOption) != "auditable" {
				errs <- "unexpected appliance name"
			}
			if i%2 == 1 && GetUnique(ctx, embedOption) != "celsius" {
				errs <- "unexpected temperature embed"
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestNilMergedContextIsEmpty(t *testing.T) {
	var ctx *MergedContext
	if _, ok := ctx.UniqueValue(forceOption.Key()); ok {
		t.Fatalf("expected nil context to be empty")
	}
	if len(ctx.KeyedValues(namedQueryOption.Key())) != 0 || ctx.Layers() != nil {
		t.Fatalf("expected nil context to be empty")
	}
}

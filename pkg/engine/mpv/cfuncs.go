//go:build mpv

package mpv

/*
#include <stdint.h>
#include <stdlib.h>
#include <mpv/client.h>
#include <mpv/render.h>
#include <mpv/render_gl.h>

extern void goRenderUpdate(void *ctx);
extern void *goGetProcAddress(void *ctx, char *name);

static void render_update_cgo(void *ctx) { goRenderUpdate(ctx); }

static void *get_proc_address_cgo(void *ctx, const char *name) { return goGetProcAddress(ctx, (char *)name); }

void bridge_set_update_callback(mpv_render_context *rc, uintptr_t h) {
	mpv_render_context_set_update_callback(rc, render_update_cgo, (void *)h);
}

int bridge_create_gl(mpv_render_context **res, mpv_handle *mpv, uintptr_t h) {
	mpv_opengl_init_params gl = {
		.get_proc_address = get_proc_address_cgo,
		.get_proc_address_ctx = (void *)h,
	};
	int advanced = 1;
	mpv_render_param params[] = {
		{MPV_RENDER_PARAM_API_TYPE, (void *)MPV_RENDER_API_TYPE_OPENGL},
		{MPV_RENDER_PARAM_OPENGL_INIT_PARAMS, &gl},
		{MPV_RENDER_PARAM_ADVANCED_CONTROL, &advanced},
		{0},
	};
	return mpv_render_context_create(res, mpv, params);
}

int bridge_create_sw(mpv_render_context **res, mpv_handle *mpv) {
	mpv_render_param params[] = {
		{MPV_RENDER_PARAM_API_TYPE, (void *)MPV_RENDER_API_TYPE_SW},
		{0},
	};
	return mpv_render_context_create(res, mpv, params);
}

int bridge_render_gl(mpv_render_context *rc, int fbo, int w, int h, int flip) {
	mpv_opengl_fbo target = {.fbo = fbo, .w = w, .h = h};
	mpv_render_param params[] = {
		{MPV_RENDER_PARAM_OPENGL_FBO, &target},
		{MPV_RENDER_PARAM_FLIP_Y, &flip},
		{0},
	};
	return mpv_render_context_render(rc, params);
}

int bridge_render_sw(mpv_render_context *rc, int w, int h, size_t stride, void *pixels) {
	int size[2] = {w, h};
	mpv_render_param params[] = {
		{MPV_RENDER_PARAM_SW_SIZE, size},
		{MPV_RENDER_PARAM_SW_FORMAT, (void *)"rgb0"},
		{MPV_RENDER_PARAM_SW_STRIDE, &stride},
		{MPV_RENDER_PARAM_SW_POINTER, pixels},
		{0},
	};
	return mpv_render_context_render(rc, params);
}

char *bridge_node_string(mpv_node *n) { return n->u.string; }
int bridge_node_flag(mpv_node *n) { return n->u.flag; }
int64_t bridge_node_int(mpv_node *n) { return n->u.int64; }
double bridge_node_double(mpv_node *n) { return n->u.double_; }
mpv_node_list *bridge_node_list(mpv_node *n) { return n->u.list; }
mpv_node *bridge_list_value(mpv_node_list *l, int i) { return &l->values[i]; }
char *bridge_list_key(mpv_node_list *l, int i) { return l->keys[i]; }
*/
import "C"
